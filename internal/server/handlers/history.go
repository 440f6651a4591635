package handlers

import (
	"net/http"

	"git.home.luguber.info/inful/web2apk/internal/eventstore"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/publish"
	"git.home.luguber.info/inful/web2apk/internal/server/responses"
)

// HistorySource is the read model behind /api/builds.
type HistorySource interface {
	GetHistory() []eventstore.BuildSummary
	GetBuild(buildID string) (eventstore.BuildSummary, bool)
}

// HistoryHandlers serves the conversion history.
type HistoryHandlers struct {
	source  HistorySource
	adapter *errors.HTTPErrorAdapter
}

// NewHistoryHandlers returns history handlers over source.
func NewHistoryHandlers(source HistorySource, adapter *errors.HTTPErrorAdapter) *HistoryHandlers {
	return &HistoryHandlers{source: source, adapter: adapter}
}

// HandleList serves GET /api/builds, newest first.
func (h *HistoryHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	history := h.source.GetHistory()
	resp := responses.BuildHistoryResponse{Builds: make([]responses.BuildEntry, 0, len(history))}
	for _, s := range history {
		resp.Builds = append(resp.Builds, entry(s))
	}
	_ = writeJSONPretty(w, r, http.StatusOK, resp)
}

// HandleGet serves GET /api/builds/{id}.
func (h *HistoryHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, ok := h.source.GetBuild(id)
	if !ok {
		h.adapter.WriteErrorResponse(w, r, errors.NotFoundError("build not found").WithContext("field", "id").Build())
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, entry(s))
}

func entry(s eventstore.BuildSummary) responses.BuildEntry {
	e := responses.BuildEntry{
		BuildID:     s.BuildID,
		Package:     s.Package,
		AppName:     s.AppName,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		DurationMs:  s.DurationMs,
		Attempts:    s.Attempts,
		Recovered:   s.Recovered,
		Warnings:    s.Warnings,
		ErrorStage:  s.ErrorStage,
		Error:       s.ErrorMessage,
	}
	if s.FileName != "" {
		e.DownloadURL = publish.DownloadPrefix + s.FileName
	}
	return e
}
