package handlers

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/server/responses"
)

// StatusProvider reports runtime state for health checks.
type StatusProvider interface {
	ActiveJobs() int
	QueueDepth() int
	GradleOffline() bool
	Mirroring() bool
}

// MonitoringHandlers serves /healthz.
type MonitoringHandlers struct {
	status  StatusProvider
	version string
	started time.Time
}

// NewMonitoringHandlers returns health handlers.
func NewMonitoringHandlers(status StatusProvider, version string) *MonitoringHandlers {
	return &MonitoringHandlers{status: status, version: version, started: time.Now()}
}

// HandleHealthCheck reports liveness and queue state.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Seconds(),
	}
	if h.status != nil {
		resp.ActiveJobs = h.status.ActiveJobs()
		resp.QueueDepth = h.status.QueueDepth()
		resp.Offline = h.status.GradleOffline()
		resp.Mirroring = h.status.Mirroring()
	}
	_ = writeJSONPretty(w, r, http.StatusOK, resp)
}
