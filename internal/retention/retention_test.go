package retention

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	calls  atomic.Int64
	cutoff atomic.Value
}

func (f *fakePruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls.Add(1)
	f.cutoff.Store(cutoff)
	return 3, nil
}

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestSweep_RemovesOnlyOldFiles(t *testing.T) {
	builds, uploads := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(builds, "old.apk"), 48*time.Hour)
	touch(t, filepath.Join(builds, "new.apk"), time.Minute)
	touch(t, filepath.Join(uploads, "stale"), 48*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(builds, "subdir"), 0o750))

	pruner := &fakePruner{}
	s := NewSweeper(24*time.Hour, pruner, builds, uploads, filepath.Join(t.TempDir(), "missing"))
	st := s.Sweep(t.Context())

	assert.Equal(t, 2, st.Files)
	assert.Equal(t, int64(3), st.Events)
	assert.Zero(t, st.Errors)
	assert.NoFileExists(t, filepath.Join(builds, "old.apk"))
	assert.FileExists(t, filepath.Join(builds, "new.apk"))
	assert.NoFileExists(t, filepath.Join(uploads, "stale"))
	assert.DirExists(t, filepath.Join(builds, "subdir"))

	cutoff, ok := pruner.cutoff.Load().(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), cutoff, time.Minute)
}

func TestSweep_DisabledWithoutMaxAge(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.apk"), 480*time.Hour)
	pruner := &fakePruner{}
	st := NewSweeper(0, pruner, dir).Sweep(t.Context())
	assert.Zero(t, st.Files)
	assert.FileExists(t, filepath.Join(dir, "old.apk"))
	assert.Zero(t, pruner.calls.Load())
}

func TestScheduler_RunsSweeps(t *testing.T) {
	pruner := &fakePruner{}
	s, err := NewScheduler(NewSweeper(time.Hour, pruner, t.TempDir()), 20*time.Millisecond)
	require.NoError(t, err)
	s.Start()
	require.Eventually(t, func() bool { return pruner.calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSweep_SkipsFilesInUse(t *testing.T) {
	uploads := t.TempDir()
	queued := filepath.Join(uploads, "queued.zip")
	touch(t, queued, 48*time.Hour)
	touch(t, filepath.Join(uploads, "orphan.zip"), 48*time.Hour)

	s := NewSweeper(24*time.Hour, nil, uploads)
	s.InUse = func(path string) bool { return path == queued }
	st := s.Sweep(t.Context())

	assert.Equal(t, 1, st.Files)
	assert.Equal(t, 1, st.Held)
	assert.FileExists(t, queued)
	assert.NoFileExists(t, filepath.Join(uploads, "orphan.zip"))
}
