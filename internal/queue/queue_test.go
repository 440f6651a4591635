package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/metrics"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
	"git.home.luguber.info/inful/web2apk/internal/publish"
)

type fakeRunner struct {
	run func(ctx context.Context, id string, req pipeline.Request) (*pipeline.Result, error)
}

func (f fakeRunner) RunWithID(ctx context.Context, id string, req pipeline.Request) (*pipeline.Result, error) {
	return f.run(ctx, id, req)
}

func succeed(_ context.Context, id string, req pipeline.Request) (*pipeline.Result, error) {
	return &pipeline.Result{
		BuildID:  id,
		Artifact: &publish.Artifact{FileName: req.PackageName + ".apk", DownloadURL: "/downloads/" + req.PackageName + ".apk"},
		Report:   &pipeline.Report{},
	}, nil
}

type gaugeRecorder struct {
	metrics.NoopRecorder
	maxRunning atomic.Int64
}

func (g *gaugeRecorder) SetRunningBuilds(n int) {
	for {
		cur := g.maxRunning.Load()
		if int64(n) <= cur || g.maxRunning.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

func startQueue(t *testing.T, size, workers int, r Runner) *BuildQueue {
	t.Helper()
	q := New(size, workers, r)
	q.Start(t.Context())
	t.Cleanup(func() { q.Stop(context.Background()) })
	return q
}

func TestSubmit_ReturnsResult(t *testing.T) {
	q := startQueue(t, 4, 1, fakeRunner{run: succeed})

	res, err := q.Submit(t.Context(), pipeline.Request{AppName: "Demo", PackageName: "com.demo.app"})
	require.NoError(t, err)
	assert.Equal(t, "/downloads/com.demo.app.apk", res.Artifact.DownloadURL)

	history := q.History()
	require.Len(t, history, 1)
	assert.Equal(t, JobStatusCompleted, history[0].Status)
	assert.Equal(t, res.BuildID, history[0].ID)
	assert.Equal(t, "/downloads/com.demo.app.apk", history[0].DownloadURL)

	snap, ok := q.JobSnapshot(res.BuildID)
	require.True(t, ok)
	assert.NotNil(t, snap.CompletedAt)
}

func TestSubmit_PropagatesFailure(t *testing.T) {
	q := startQueue(t, 4, 1, fakeRunner{run: func(context.Context, string, pipeline.Request) (*pipeline.Result, error) {
		return nil, errors.ScaffoldError("scaffold step add-platform failed").Build()
	}})

	_, err := q.Submit(t.Context(), pipeline.Request{PackageName: "com.demo.app"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryScaffold))

	history := q.History()
	require.Len(t, history, 1)
	assert.Equal(t, JobStatusFailed, history[0].Status)
	assert.Equal(t, "scaffold step add-platform failed", history[0].Error)
}

func TestWorkersBoundConcurrency(t *testing.T) {
	var running, peak atomic.Int64
	release := make(chan struct{})
	rec := &gaugeRecorder{}
	q := New(8, 2, fakeRunner{run: func(ctx context.Context, id string, req pipeline.Request) (*pipeline.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return succeed(ctx, id, req)
	}})
	q.SetRecorder(rec)
	q.Start(t.Context())
	t.Cleanup(func() { q.Stop(context.Background()) })

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Submit(context.Background(), pipeline.Request{PackageName: "com.demo.app"})
		}()
	}
	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(2), peak.Load())
	assert.Equal(t, int64(2), rec.maxRunning.Load())
	assert.Len(t, q.History(), 5)
}

func TestEnqueue_FullQueueIsRetryable(t *testing.T) {
	// Not started: nothing drains the channel.
	q := New(1, 1, fakeRunner{run: succeed})
	_, err := q.Enqueue(t.Context(), pipeline.Request{PackageName: "com.demo.a"})
	require.NoError(t, err)

	_, err = q.Enqueue(t.Context(), pipeline.Request{PackageName: "com.demo.b"})
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, ce.CanRetry())
	assert.Equal(t, errors.CategoryRuntime, ce.Category())

	q.Stop(context.Background())
	require.Len(t, q.History(), 1)
	assert.Equal(t, JobStatusCanceled, q.History()[0].Status)
}

func TestSubmit_CallerCancelReachesJob(t *testing.T) {
	started := make(chan struct{})
	q := startQueue(t, 4, 1, fakeRunner{run: func(ctx context.Context, _ string, _ pipeline.Request) (*pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, errors.CanceledError("conversion canceled").WithCause(ctx.Err()).Build()
	}})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Submit(ctx, pipeline.Request{PackageName: "com.demo.app"})
		errCh <- err
	}()
	<-started
	cancel()

	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
	require.Eventually(t, func() bool {
		h := q.History()
		return len(h) == 1 && h[0].Status == JobStatusCanceled
	}, time.Second, 5*time.Millisecond)
}

func TestHoldsFile_UntilJobFinishes(t *testing.T) {
	dir := t.TempDir()
	upload := dir + "/bundle.zip"
	started, release := make(chan struct{}), make(chan struct{})
	q := startQueue(t, 4, 1, fakeRunner{run: func(ctx context.Context, id string, req pipeline.Request) (*pipeline.Result, error) {
		close(started)
		<-release
		return succeed(ctx, id, req)
	}})

	assert.False(t, q.HoldsFile(upload))
	job, err := q.Enqueue(t.Context(), pipeline.Request{PackageName: "com.demo.app", UploadedFiles: []string{upload}})
	require.NoError(t, err)
	assert.True(t, q.HoldsFile(dir+"/./bundle.zip"))

	<-started
	assert.True(t, q.HoldsFile(upload))
	close(release)

	require.Eventually(t, func() bool {
		snap, ok := q.JobSnapshot(job.ID)
		return ok && snap.Status == JobStatusCompleted
	}, time.Second, 5*time.Millisecond)
	assert.False(t, q.HoldsFile(upload))
}

func TestHoldsFile_ReleasedWhenQueueIsFull(t *testing.T) {
	q := New(1, 1, fakeRunner{run: succeed})
	t.Cleanup(func() { q.Stop(context.Background()) })
	_, err := q.Enqueue(t.Context(), pipeline.Request{PackageName: "com.demo.a", UploadedFiles: []string{"/tmp/a.zip"}})
	require.NoError(t, err)
	_, err = q.Enqueue(t.Context(), pipeline.Request{PackageName: "com.demo.b", UploadedFiles: []string{"/tmp/b.zip"}})
	require.Error(t, err)

	assert.True(t, q.HoldsFile("/tmp/a.zip"))
	assert.False(t, q.HoldsFile("/tmp/b.zip"))
}
