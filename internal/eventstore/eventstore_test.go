package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_AppendAndQuery(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()

	require.NoError(t, s.Append(ctx, "b1", TypeBuildStarted, []byte(`{"package":"com.demo.app"}`), map[string]string{"worker": "0"}))
	require.NoError(t, s.Append(ctx, "b2", TypeBuildStarted, []byte(`{}`), nil))
	require.NoError(t, s.Append(ctx, "b1", TypeBuildFailed, nil, nil))

	events, err := s.GetByBuildID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeBuildStarted, events[0].Type())
	assert.Equal(t, "0", events[0].Metadata()["worker"])
	assert.Equal(t, TypeBuildFailed, events[1].Type())
	assert.Equal(t, "{}", string(events[1].Payload()))

	all, err := s.GetRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_DeleteBefore(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()
	require.NoError(t, s.Append(ctx, "b1", TypeBuildStarted, nil, nil))

	n, err := s.DeleteBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEmitterAndProjection(t *testing.T) {
	s := newStore(t)
	ctx := t.Context()
	proj := NewBuildHistoryProjection(s, 10)
	em := NewEmitter(s, proj)

	em.Emit(ctx, "b1", TypeBuildStarted, BuildStartedPayload{Package: "com.demo.app", AppName: "Demo"})
	em.Emit(ctx, "b1", TypeStrategyAttempted, StrategyAttemptedPayload{Strategy: "system-online", Result: "failed"})
	em.Emit(ctx, "b1", TypeStrategyAttempted, StrategyAttemptedPayload{Strategy: "system-no-daemon-online", Result: "success"})
	em.Emit(ctx, "b1", TypeBuildCompleted, BuildCompletedPayload{Status: StatusWarnings, FileName: "com.demo.app-1.apk", Size: 42, Warnings: []string{"gradle"}})

	em.Emit(ctx, "b2", TypeBuildStarted, BuildStartedPayload{Package: "com.demo.other"})
	em.Emit(ctx, "b2", TypeBuildFailed, BuildFailedPayload{Stage: "scaffold", Error: "npm failed"})

	history := proj.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "b2", history[0].BuildID)
	assert.Equal(t, StatusFailed, history[0].Status)
	assert.Equal(t, "scaffold", history[0].ErrorStage)

	b1, ok := proj.GetBuild("b1")
	require.True(t, ok)
	assert.Equal(t, StatusWarnings, b1.Status)
	assert.Equal(t, []string{"system-online:failed", "system-no-daemon-online:success"}, b1.Attempts)
	assert.Equal(t, "com.demo.app", b1.Package)
	assert.NotNil(t, b1.CompletedAt)

	// A fresh projection rebuilt from the ledger sees the same history.
	rebuilt := NewBuildHistoryProjection(s, 10)
	require.NoError(t, rebuilt.Rebuild(ctx))
	assert.Len(t, rebuilt.GetHistory(), 2)
	assert.False(t, rebuilt.LastSyncTime().IsZero())
}

func TestProjection_BoundedHistory(t *testing.T) {
	s := newStore(t)
	proj := NewBuildHistoryProjection(s, 2)
	em := NewEmitter(s, proj)
	for _, id := range []string{"a", "b", "c"} {
		em.Emit(t.Context(), id, TypeBuildStarted, BuildStartedPayload{})
		em.Emit(t.Context(), id, TypeBuildFailed, BuildFailedPayload{})
	}
	history := proj.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].BuildID)
	_, ok := proj.GetBuild("a")
	assert.False(t, ok)
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	em.Emit(t.Context(), "b", TypeBuildStarted, nil)
}
