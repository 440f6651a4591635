package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusWarnings  = "completed_with_warnings"
	StatusFailed    = "failed"
)

// BuildSummary is a read model of one conversion.
type BuildSummary struct {
	BuildID      string     `json:"build_id"`
	Package      string     `json:"package"`
	AppName      string     `json:"app_name"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	Attempts     []string   `json:"attempts,omitempty"` // strategy:result in order
	FileName     string     `json:"file_name,omitempty"`
	Size         int64      `json:"size,omitempty"`
	Recovered    bool       `json:"recovered,omitempty"`
	Warnings     []string   `json:"warnings,omitempty"`
	ErrorStage   string     `json:"error_stage,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// BuildHistoryProjection maintains a bounded in-memory view of recent
// conversions, reconstructed from the ledger at startup.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection backed by store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild replays every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyLocked(event)
	}
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	p.trimLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(event)
}

func (p *BuildHistoryProjection) applyLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}
	summary, ok := p.builds[buildID]
	if !ok {
		summary = &BuildSummary{BuildID: buildID, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		var payload BuildStartedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Package = payload.Package
			summary.AppName = payload.AppName
		}
		summary.StartedAt = event.Timestamp()

	case TypeStrategyAttempted:
		var payload StrategyAttemptedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Attempts = append(summary.Attempts, payload.Strategy+":"+payload.Result)
		}

	case TypeBuildCompleted:
		var payload BuildCompletedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Status = payload.Status
			summary.FileName = payload.FileName
			summary.Size = payload.Size
			summary.Recovered = payload.Recovered
			summary.Warnings = payload.Warnings
		}
		p.finishLocked(summary, event.Timestamp())

	case TypeBuildFailed:
		var payload BuildFailedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		summary.Status = StatusFailed
		p.finishLocked(summary, event.Timestamp())
	}
}

func (p *BuildHistoryProjection) finishLocked(summary *BuildSummary, at time.Time) {
	summary.CompletedAt = &at
	summary.DurationMs = at.Sub(summary.StartedAt).Milliseconds()
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	p.trimLocked()
}

// trimLocked bounds history and drops finished builds that fell out of it.
func (p *BuildHistoryProjection) trimLocked() {
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, s := range p.builds {
		if s.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns finished builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]BuildSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// GetBuild returns a copy of the summary for buildID.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
