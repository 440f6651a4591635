package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "web2apk"

// buildBuckets cover npm installs and Gradle builds, which run for minutes.
var buildBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration    *prom.HistogramVec
	stageResults     *prom.CounterVec
	buildDuration    prom.Histogram
	buildOutcome     *prom.CounterVec
	strategyDuration *prom.HistogramVec
	strategyResults  *prom.CounterVec
	recovered        prom.Counter
	advisories       *prom.CounterVec
	queueDepth       prom.Gauge
	running          prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   buildBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total conversion duration",
			Buckets:   buildBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Conversion outcomes by final status",
		}, []string{"outcome"}),
		strategyDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_attempt_duration_seconds",
			Help:      "Duration of Gradle strategy attempts",
			Buckets:   buildBuckets,
		}, []string{"strategy", "result"}),
		strategyResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_attempts_total",
			Help:      "Gradle strategy attempts by result",
		}, []string{"strategy", "result"}),
		recovered: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_artifacts_total",
			Help:      "Builds that fell back to a recovered artifact",
		}),
		advisories: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "advisories_total",
			Help:      "Absorbed non-fatal failures by category",
		}, []string{"category"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Conversions waiting for a worker",
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running_builds",
			Help:      "Conversions currently executing",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.buildDuration, pr.buildOutcome,
		pr.strategyDuration, pr.strategyResults, pr.recovered, pr.advisories, pr.queueDepth, pr.running)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStrategyAttempt(strategy string, d time.Duration, success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.strategyDuration.WithLabelValues(strategy, res).Observe(d.Seconds())
	p.strategyResults.WithLabelValues(strategy, res).Inc()
}

func (p *PrometheusRecorder) IncRecoveredArtifact() { p.recovered.Inc() }

func (p *PrometheusRecorder) IncAdvisory(category string) {
	p.advisories.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }

func (p *PrometheusRecorder) SetRunningBuilds(n int) { p.running.Set(float64(n)) }
