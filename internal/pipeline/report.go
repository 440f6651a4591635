package pipeline

import (
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/build"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/metrics"
	"git.home.luguber.info/inful/web2apk/internal/publish"
)

// Report captures what happened during one run.
type Report struct {
	BuildID string
	Package string
	AppName string
	Start   time.Time
	End     time.Time

	Stages         []StageName
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]StageResult
	FailedStage    StageName

	Attempts   []build.Attempt
	Recovered  bool
	Advisories []*errors.ClassifiedError
	Outcome    metrics.BuildOutcomeLabel
	Err        error
}

func newReport(buildID string, req Request) *Report {
	return &Report{
		BuildID:        buildID,
		Package:        req.PackageName,
		AppName:        req.AppName,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]StageResult),
	}
}

func (r *Report) recordStage(name StageName, d time.Duration, res StageResult) {
	r.Stages = append(r.Stages, name)
	r.StageDurations[name] = d
	r.StageResults[name] = res
	if res == StageResultFatal || res == StageResultCanceled {
		r.FailedStage = name
	}
}

func (r *Report) advise(a ...*errors.ClassifiedError) {
	for _, e := range a {
		if e != nil {
			r.Advisories = append(r.Advisories, e)
		}
	}
}

// finish stamps the end time and derives the outcome from err and advisories.
func (r *Report) finish(err error) {
	r.End = time.Now()
	r.Err = err
	switch {
	case err == nil && len(r.Advisories) > 0:
		r.Outcome = metrics.OutcomeWarning
	case err == nil:
		r.Outcome = metrics.OutcomeSuccess
	case errors.HasCategory(err, errors.CategoryCanceled):
		r.Outcome = metrics.OutcomeCanceled
	default:
		r.Outcome = metrics.OutcomeFailed
	}
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Warnings returns advisory messages in the order they were raised.
func (r *Report) Warnings() []string {
	out := make([]string, 0, len(r.Advisories))
	for _, a := range r.Advisories {
		out = append(out, a.Message())
	}
	return out
}

// Result is what a run hands back. It is non-nil for every run that got past
// validation, including failed ones, so callers can inspect the report.
type Result struct {
	BuildID    string
	Artifact   *publish.Artifact
	Advisories []*errors.ClassifiedError
	Report     *Report
}

// Succeeded reports whether an artifact was published.
func (r *Result) Succeeded() bool { return r != nil && r.Artifact != nil }

// HasWarnings reports whether the run succeeded with advisories.
func (r *Result) HasWarnings() bool { return r.Succeeded() && len(r.Advisories) > 0 }

// Warnings returns the advisory messages.
func (r *Result) Warnings() []string {
	if r == nil || r.Report == nil {
		return nil
	}
	return r.Report.Warnings()
}

// IsExhausted reports whether err means every build strategy failed.
func IsExhausted(err error) bool { return stderrors.Is(err, build.ErrStrategiesExhausted) }
