package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// Emitter appends events to a store and keeps a projection current. Ledger
// failures are logged and never fail a conversion.
type Emitter struct {
	store      Store
	projection *BuildHistoryProjection
}

// NewEmitter returns an emitter writing to store. projection may be nil.
func NewEmitter(store Store, projection *BuildHistoryProjection) *Emitter {
	return &Emitter{store: store, projection: projection}
}

// Emit records payload as an event of eventType for buildID.
func (e *Emitter) Emit(ctx context.Context, buildID, eventType string, payload any) {
	if e == nil || e.store == nil {
		return
	}
	ev, err := NewEvent(buildID, eventType, payload)
	if err != nil {
		slog.Warn("Dropping event", logfields.BuildID(buildID), logfields.Error(err))
		return
	}
	// The conversion context may already be canceled; the ledger entry still matters.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.Append(writeCtx, buildID, eventType, ev.Payload(), nil); err != nil {
		slog.Warn("Failed to append event",
			logfields.BuildID(buildID),
			slog.String("event_type", eventType),
			logfields.Error(err))
		return
	}
	if e.projection != nil {
		e.projection.Apply(ev)
	}
}
