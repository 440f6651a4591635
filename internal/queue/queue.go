// Package queue bounds how many conversions run at once. Jobs wait in a
// buffered channel and are drained by a fixed pool of workers.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/metrics"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
)

// Runner executes one conversion under a caller-chosen id.
type Runner interface {
	RunWithID(ctx context.Context, buildID string, req pipeline.Request) (*pipeline.Result, error)
}

// BuildQueue manages pending and running conversions.
type BuildQueue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*Job
	held        map[string]int // upload paths referenced by queued or running jobs
	history     []*Job
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	runner      Runner
	recorder    metrics.Recorder
}

// New creates a queue holding at most maxSize pending jobs, drained by
// workers goroutines.
func New(maxSize, workers int, runner Runner) *BuildQueue {
	if maxSize <= 0 {
		maxSize = 16
	}
	if workers <= 0 {
		workers = 2
	}
	if runner == nil {
		panic("queue.New: runner is required")
	}
	return &BuildQueue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*Job),
		held:        make(map[string]int),
		historySize: 50,
		stopChan:    make(chan struct{}),
		runner:      runner,
		recorder:    metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder for queue gauges.
func (bq *BuildQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	bq.recorder = r
}

// Start begins processing jobs.
func (bq *BuildQueue) Start(ctx context.Context) {
	slog.Info("Starting build queue", slog.Int("workers", bq.workers), slog.Int("max_size", bq.maxSize))
	for i := range bq.workers {
		bq.wg.Add(1)
		go bq.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still
// queued are answered with a cancellation error.
func (bq *BuildQueue) Stop(_ context.Context) {
	bq.stopOnce.Do(func() { close(bq.stopChan) })

	bq.mu.Lock()
	for _, job := range bq.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	bq.mu.Unlock()

	bq.wg.Wait()

	for {
		select {
		case job := <-bq.jobs:
			bq.finish(job, nil, errors.CanceledError("server shutting down").WithContext("package", job.Package).Build())
		default:
			bq.recorder.SetQueueDepth(0)
			return
		}
	}
}

// Length returns the number of pending jobs.
func (bq *BuildQueue) Length() int { return len(bq.jobs) }

// Submit enqueues req and waits for its outcome. Canceling ctx cancels the
// job whether it is still queued or already running.
func (bq *BuildQueue) Submit(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	job, err := bq.Enqueue(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case out := <-job.done:
		return out.result, out.err
	case <-ctx.Done():
		// The worker still runs the job under the canceled context, which
		// releases its uploads.
		return nil, errors.CanceledError("conversion canceled").
			WithCause(ctx.Err()).
			WithContext("package", req.PackageName).
			Build()
	}
}

// Enqueue adds a job without waiting for it. A full queue is reported as a
// retryable runtime error.
func (bq *BuildQueue) Enqueue(ctx context.Context, req pipeline.Request) (*Job, error) {
	select {
	case <-bq.stopChan:
		return nil, errors.NewError(errors.CategoryRuntime, "build queue is stopped").Build()
	default:
	}

	job := newJob(ctx, uuid.NewString(), req)
	bq.hold(job)
	select {
	case bq.jobs <- job:
		bq.recorder.SetQueueDepth(len(bq.jobs))
		slog.Debug("Job queued", logfields.BuildID(job.ID), logfields.Package(job.Package))
		return job, nil
	default:
		bq.unhold(job)
		return nil, errors.NewError(errors.CategoryRuntime, "build queue is full, try again later").
			Retryable().
			WithContext("package", req.PackageName).
			Build()
	}
}

// HoldsFile reports whether a queued or running job still needs the upload
// at path. The retention sweep skips such files.
func (bq *BuildQueue) HoldsFile(path string) bool {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	return bq.held[filepath.Clean(path)] > 0
}

func (bq *BuildQueue) hold(job *Job) {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	for _, f := range job.req.UploadedFiles {
		bq.held[filepath.Clean(f)]++
	}
}

func (bq *BuildQueue) unhold(job *Job) {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	bq.unholdLocked(job)
}

func (bq *BuildQueue) unholdLocked(job *Job) {
	for _, f := range job.req.UploadedFiles {
		key := filepath.Clean(f)
		if bq.held[key] <= 1 {
			delete(bq.held, key)
			continue
		}
		bq.held[key]--
	}
}

// GetActiveJobs returns copies of the running jobs.
func (bq *BuildQueue) GetActiveJobs() []Job {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	out := make([]Job, 0, len(bq.active))
	for _, j := range bq.active {
		out = append(out, snapshot(j))
	}
	return out
}

// History returns finished jobs, oldest first.
func (bq *BuildQueue) History() []Job {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	out := make([]Job, 0, len(bq.history))
	for _, j := range bq.history {
		out = append(out, snapshot(j))
	}
	return out
}

// JobSnapshot returns a copy of a job (active first, then history).
func (bq *BuildQueue) JobSnapshot(id string) (Job, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()
	if j, ok := bq.active[id]; ok {
		return snapshot(j), true
	}
	for _, j := range bq.history {
		if j.ID == id {
			return snapshot(j), true
		}
	}
	return Job{}, false
}

func snapshot(j *Job) Job {
	return Job{
		ID:          j.ID,
		Package:     j.Package,
		AppName:     j.AppName,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Duration:    j.Duration,
		Error:       j.Error,
		Warnings:    append([]string(nil), j.Warnings...),
		DownloadURL: j.DownloadURL,
	}
}

func (bq *BuildQueue) worker(ctx context.Context, workerID string) {
	defer bq.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-bq.stopChan:
			return
		case job := <-bq.jobs:
			bq.recorder.SetQueueDepth(len(bq.jobs))
			if job != nil {
				bq.processJob(ctx, job, workerID)
			}
		}
	}
}

func (bq *BuildQueue) processJob(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if job.submitCtx != nil {
		stop := context.AfterFunc(job.submitCtx, cancel)
		defer stop()
	}

	start := time.Now()
	bq.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &start
	job.Status = JobStatusRunning
	bq.active[job.ID] = job
	running := len(bq.active)
	bq.mu.Unlock()
	bq.recorder.SetRunningBuilds(running)

	select {
	case <-bq.stopChan:
		cancel()
	default:
	}

	slog.Info("Job started", logfields.BuildID(job.ID), logfields.Package(job.Package), logfields.Worker(workerID))
	res, err := bq.runner.RunWithID(jobCtx, job.ID, job.req)
	bq.finish(job, res, err)
}

// finish records the outcome, moves the job to history and wakes the submitter.
func (bq *BuildQueue) finish(job *Job, res *pipeline.Result, err error) {
	end := time.Now()
	bq.mu.Lock()
	job.CompletedAt = &end
	if job.StartedAt != nil {
		job.Duration = end.Sub(*job.StartedAt)
	}
	switch {
	case err == nil:
		job.Status = JobStatusCompleted
	case errors.HasCategory(err, errors.CategoryCanceled):
		job.Status = JobStatusCanceled
	default:
		job.Status = JobStatusFailed
	}
	if err != nil {
		job.Error = err.Error()
		if ce, ok := errors.AsClassified(err); ok {
			job.Error = ce.Message()
		}
	}
	if res != nil {
		job.Warnings = res.Warnings()
		if res.Artifact != nil {
			job.DownloadURL = res.Artifact.DownloadURL
		}
	}
	delete(bq.active, job.ID)
	bq.unholdLocked(job)
	bq.addToHistory(job)
	running := len(bq.active)
	bq.mu.Unlock()
	bq.recorder.SetRunningBuilds(running)

	slog.Info("Job finished",
		logfields.BuildID(job.ID),
		logfields.JobStatus(string(job.Status)),
		logfields.Duration(job.Duration))
	job.done <- outcome{result: res, err: err}
}

func (bq *BuildQueue) addToHistory(job *Job) {
	bq.history = append(bq.history, job)
	if len(bq.history) > bq.historySize {
		copy(bq.history, bq.history[len(bq.history)-bq.historySize:])
		bq.history = bq.history[:bq.historySize]
	}
}
