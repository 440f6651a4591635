package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel is the final status of a conversion.
type BuildOutcomeLabel string

const (
	OutcomeSuccess  BuildOutcomeLabel = "success"
	OutcomeWarning  BuildOutcomeLabel = "warning"
	OutcomeFailed   BuildOutcomeLabel = "failed"
	OutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for conversions.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	ObserveStrategyAttempt(strategy string, d time.Duration, success bool)
	IncRecoveredArtifact()
	IncAdvisory(category string)
	SetQueueDepth(n int)
	SetRunningBuilds(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                 {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                 {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)                  {}
func (NoopRecorder) ObserveStrategyAttempt(string, time.Duration, bool) {}
func (NoopRecorder) IncRecoveredArtifact()                              {}
func (NoopRecorder) IncAdvisory(string)                                 {}
func (NoopRecorder) SetQueueDepth(int)                                  {}
func (NoopRecorder) SetRunningBuilds(int)                               {}
