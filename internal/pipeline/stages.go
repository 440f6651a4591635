package pipeline

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageIcons     StageName = "icons"
	StageContent   StageName = "content"
	StageScaffold  StageName = "scaffold"
	StageConfigure StageName = "configure"
	StageBuild     StageName = "build"
	StagePublish   StageName = "publish"
)

// StageResult is the outcome of one stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

// Stage is one unit of work over the run state.
type Stage func(ctx context.Context, st *runState) error

// StageDef pairs a stage name with its function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// RunStages executes stages in order, recording timing and stopping on the
// first fatal error. A stage that only added advisories counts as a warning.
func RunStages(ctx context.Context, st *runState, stages []StageDef) error {
	for _, def := range stages {
		if err := ctx.Err(); err != nil {
			ce := canceled(def.Name, err)
			st.report.recordStage(def.Name, 0, StageResultCanceled)
			st.observer.OnStageComplete(ctx, st.buildID, def.Name, 0, StageResultCanceled)
			return ce
		}

		before := len(st.report.Advisories)
		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)

		result := StageResultSuccess
		switch {
		case err != nil && ctx.Err() != nil:
			result = StageResultCanceled
			err = canceled(def.Name, ctx.Err())
		case err != nil:
			result = StageResultFatal
			err = fatal(def.Name, err)
		case len(st.report.Advisories) > before:
			result = StageResultWarning
		}

		st.report.recordStage(def.Name, dur, result)
		st.observer.OnStageComplete(ctx, st.buildID, def.Name, dur, result)
		slog.Debug("Stage finished",
			logfields.BuildID(st.buildID),
			logfields.Stage(string(def.Name)),
			logfields.Duration(dur),
			slog.String("result", string(result)))

		if err != nil {
			return err
		}
	}
	return nil
}

// fatal makes sure the returned error is classified and names its stage.
func fatal(stage StageName, err error) error {
	if ce, ok := errors.AsClassified(err); ok {
		return ce.WithContext("stage", string(stage))
	}
	return errors.InternalError("stage failed").
		WithCause(err).
		WithContext("stage", string(stage)).
		Build()
}

func canceled(stage StageName, cause error) error {
	return errors.CanceledError("conversion canceled").
		WithCause(cause).
		WithContext("stage", string(stage)).
		WithContext("reason", cause.Error()).
		Build()
}
