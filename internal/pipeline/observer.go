package pipeline

import (
	"context"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/build"
	"git.home.luguber.info/inful/web2apk/internal/eventstore"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/metrics"
)

// Observer receives lifecycle callbacks for every run. Implementations must
// not block for long; they run on the conversion goroutine.
type Observer interface {
	OnBuildStart(ctx context.Context, buildID string, req Request)
	OnStageComplete(ctx context.Context, buildID string, stage StageName, d time.Duration, result StageResult)
	OnStrategyAttempt(ctx context.Context, buildID string, a build.Attempt)
	OnBuildComplete(ctx context.Context, res *Result, err error)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) OnBuildStart(context.Context, string, Request)                                 {}
func (NopObserver) OnStageComplete(context.Context, string, StageName, time.Duration, StageResult) {}
func (NopObserver) OnStrategyAttempt(context.Context, string, build.Attempt)                      {}
func (NopObserver) OnBuildComplete(context.Context, *Result, error)                               {}

// Observers fans callbacks out in order.
type Observers []Observer

func (o Observers) OnBuildStart(ctx context.Context, buildID string, req Request) {
	for _, x := range o {
		x.OnBuildStart(ctx, buildID, req)
	}
}

func (o Observers) OnStageComplete(ctx context.Context, buildID string, stage StageName, d time.Duration, result StageResult) {
	for _, x := range o {
		x.OnStageComplete(ctx, buildID, stage, d, result)
	}
}

func (o Observers) OnStrategyAttempt(ctx context.Context, buildID string, a build.Attempt) {
	for _, x := range o {
		x.OnStrategyAttempt(ctx, buildID, a)
	}
}

func (o Observers) OnBuildComplete(ctx context.Context, res *Result, err error) {
	for _, x := range o {
		x.OnBuildComplete(ctx, res, err)
	}
}

// MetricsObserver feeds a metrics.Recorder.
type MetricsObserver struct {
	Recorder metrics.Recorder
}

func (MetricsObserver) OnBuildStart(context.Context, string, Request) {}

func (m MetricsObserver) OnStageComplete(_ context.Context, _ string, stage StageName, d time.Duration, result StageResult) {
	m.Recorder.ObserveStageDuration(string(stage), d)
	m.Recorder.IncStageResult(string(stage), metrics.ResultLabel(result))
}

func (m MetricsObserver) OnStrategyAttempt(_ context.Context, _ string, a build.Attempt) {
	m.Recorder.ObserveStrategyAttempt(a.Strategy.Name(), a.Duration, a.Succeeded())
}

func (m MetricsObserver) OnBuildComplete(_ context.Context, res *Result, _ error) {
	if res == nil || res.Report == nil {
		return
	}
	m.Recorder.ObserveBuildDuration(res.Report.Duration())
	m.Recorder.IncBuildOutcome(res.Report.Outcome)
	if res.Report.Recovered {
		m.Recorder.IncRecoveredArtifact()
	}
	for _, a := range res.Report.Advisories {
		m.Recorder.IncAdvisory(string(a.Category()))
	}
}

// EventObserver records the run in the event ledger.
type EventObserver struct {
	Emitter *eventstore.Emitter
}

func (e EventObserver) OnBuildStart(ctx context.Context, buildID string, req Request) {
	e.Emitter.Emit(ctx, buildID, eventstore.TypeBuildStarted, eventstore.BuildStartedPayload{
		Package:     req.PackageName,
		AppName:     req.AppName,
		Version:     req.Version,
		VersionCode: req.VersionCode,
		FileCount:   len(req.WebFiles),
		HasIcon:     req.IconPath != "",
	})
}

func (e EventObserver) OnStageComplete(ctx context.Context, buildID string, stage StageName, d time.Duration, result StageResult) {
	e.Emitter.Emit(ctx, buildID, eventstore.TypeStageCompleted, eventstore.StageCompletedPayload{
		Stage:      string(stage),
		Result:     string(result),
		DurationMs: d.Milliseconds(),
	})
}

func (e EventObserver) OnStrategyAttempt(ctx context.Context, buildID string, a build.Attempt) {
	e.Emitter.Emit(ctx, buildID, eventstore.TypeStrategyAttempted, eventstore.StrategyAttemptedPayload{
		Strategy:   a.Strategy.Name(),
		Result:     a.Result(),
		DurationMs: a.Duration.Milliseconds(),
		Diagnostic: a.Diagnostic,
	})
}

func (e EventObserver) OnBuildComplete(ctx context.Context, res *Result, err error) {
	if res == nil {
		return
	}
	if err != nil {
		p := eventstore.BuildFailedPayload{
			Category: string(errors.GetCategory(err)),
			Error:    err.Error(),
		}
		if ce, ok := errors.AsClassified(err); ok {
			p.Error = ce.Message()
		}
		if res.Report != nil {
			p.Stage = string(res.Report.FailedStage)
		}
		e.Emitter.Emit(ctx, res.BuildID, eventstore.TypeBuildFailed, p)
		return
	}
	status := eventstore.StatusCompleted
	if res.HasWarnings() {
		status = eventstore.StatusWarnings
	}
	e.Emitter.Emit(ctx, res.BuildID, eventstore.TypeBuildCompleted, eventstore.BuildCompletedPayload{
		Status:    status,
		FileName:  res.Artifact.FileName,
		Size:      res.Artifact.Size,
		SHA256:    res.Artifact.SHA256,
		Recovered: res.Report.Recovered,
		Warnings:  res.Warnings(),
	})
}
