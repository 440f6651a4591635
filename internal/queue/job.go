package queue

import (
	"context"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/pipeline"
)

// JobStatus is the lifecycle state of a queued conversion.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Job is one conversion waiting for or held by a worker.
type Job struct {
	ID          string        `json:"id"`
	Package     string        `json:"package"`
	AppName     string        `json:"app_name"`
	Status      JobStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Error       string        `json:"error,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`

	req       pipeline.Request
	submitCtx context.Context
	done      chan outcome
	cancel    context.CancelFunc
}

type outcome struct {
	result *pipeline.Result
	err    error
}

func newJob(ctx context.Context, id string, req pipeline.Request) *Job {
	return &Job{
		ID:        id,
		Package:   req.PackageName,
		AppName:   req.AppName,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
		req:       req,
		submitCtx: ctx,
		done:      make(chan outcome, 1),
	}
}
