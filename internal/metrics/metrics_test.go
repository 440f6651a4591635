package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("build", 90*time.Second)
	pr.IncStageResult("build", ResultSuccess)
	pr.ObserveBuildDuration(2 * time.Minute)
	pr.IncBuildOutcome(OutcomeWarning)
	pr.ObserveStrategyAttempt("system-offline", time.Minute, false)
	pr.ObserveStrategyAttempt("system-online", time.Minute, true)
	pr.IncRecoveredArtifact()
	pr.IncAdvisory("gradle")
	pr.SetQueueDepth(3)
	pr.SetRunningBuilds(2)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("build", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("warning")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.strategyResults.WithLabelValues("system-offline", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.recovered), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.queueDepth), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestHTTPHandler(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(OutcomeSuccess)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `web2apk_build_outcomes_total{outcome="success"} 1`)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncBuildOutcome(OutcomeFailed)
	r.ObserveStrategyAttempt("wrapper-online", time.Second, true)
}
