package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
)

// Event type names.
const (
	TypeBuildStarted      = "BuildStarted"
	TypeStageCompleted    = "StageCompleted"
	TypeStrategyAttempted = "StrategyAttempted"
	TypeBuildCompleted    = "BuildCompleted"
	TypeBuildFailed       = "BuildFailed"
)

// BuildStartedPayload describes the request that started a conversion.
type BuildStartedPayload struct {
	Package     string `json:"package"`
	AppName     string `json:"app_name"`
	Version     string `json:"version"`
	VersionCode int    `json:"version_code"`
	FileCount   int    `json:"file_count"`
	HasIcon     bool   `json:"has_icon"`
}

// StageCompletedPayload records one stage.
type StageCompletedPayload struct {
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMs int64  `json:"duration_ms"`
}

// StrategyAttemptedPayload records one Gradle strategy attempt.
type StrategyAttemptedPayload struct {
	Strategy   string `json:"strategy"`
	Result     string `json:"result"`
	DurationMs int64  `json:"duration_ms"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// BuildCompletedPayload describes a published artifact.
type BuildCompletedPayload struct {
	Status    string   `json:"status"` // completed or completed_with_warnings
	FileName  string   `json:"file_name"`
	Size      int64    `json:"size"`
	SHA256    string   `json:"sha256"`
	Recovered bool     `json:"recovered"`
	Warnings  []string `json:"warnings,omitempty"`
}

// BuildFailedPayload describes a terminal failure.
type BuildFailedPayload struct {
	Stage    string `json:"stage"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(buildID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.InternalError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}
