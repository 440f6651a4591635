// Package responses defines the JSON bodies returned by the HTTP API.
package responses

import "time"

// GenerateResponse is returned by POST /api/generate-apk on success.
type GenerateResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	BuildID     string   `json:"buildId"`
	DownloadURL string   `json:"downloadUrl"`
	FileSize    int64    `json:"fileSize"`
	SHA256      string   `json:"sha256"`
	Recovered   bool     `json:"recovered,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// HealthResponse represents the health check payload.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     float64   `json:"uptime"`
	ActiveJobs int       `json:"active_jobs"`
	QueueDepth int       `json:"queue_depth"`
	Offline    bool      `json:"gradle_offline"`
	Mirroring  bool      `json:"object_mirror"`
}

// BuildHistoryResponse lists recent conversions.
type BuildHistoryResponse struct {
	Builds []BuildEntry `json:"builds"`
}

// BuildEntry is one conversion in the history.
type BuildEntry struct {
	BuildID     string     `json:"build_id"`
	Package     string     `json:"package"`
	AppName     string     `json:"app_name,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Attempts    []string   `json:"attempts,omitempty"`
	Recovered   bool       `json:"recovered,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	ErrorStage  string     `json:"error_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
}
