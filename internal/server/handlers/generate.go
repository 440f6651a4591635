package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/web2apk/internal/cleanup"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
	"git.home.luguber.info/inful/web2apk/internal/server/responses"
)

// Submitter runs a conversion and waits for it.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// GenerateHandlers serves POST /api/generate-apk.
type GenerateHandlers struct {
	submitter  Submitter
	uploadsDir string
	limits     UploadLimits
	adapter    *errors.HTTPErrorAdapter
	cleanup    *cleanup.Coordinator
}

// NewGenerateHandlers wires the conversion endpoint.
func NewGenerateHandlers(s Submitter, uploadsDir string, limits UploadLimits, adapter *errors.HTTPErrorAdapter) *GenerateHandlers {
	return &GenerateHandlers{
		submitter:  s,
		uploadsDir: uploadsDir,
		limits:     limits,
		adapter:    adapter,
		cleanup:    cleanup.NewCoordinator(),
	}
}

// HandleGenerate accepts the multipart upload, runs the conversion and
// returns the download location.
func (h *GenerateHandlers) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	// Every file at its limit plus room for the form fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxFileBytes*int64(h.limits.MaxFiles+1)+1<<20)

	req, err := parseUpload(r, h.uploadsDir, h.limits)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	// The pipeline removes uploads itself; this covers runs that never started.
	defer h.cleanup.Run("", req.UploadedFiles)

	slog.Info("Received APK generation request",
		logfields.AppName(req.AppName),
		logfields.Package(req.PackageName),
		slog.String("version", req.Version),
		slog.Int("files", len(req.WebFiles)),
		slog.Bool("icon", req.IconPath != ""))

	res, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	msg := "APK generated"
	if res.HasWarnings() {
		msg = "APK generated with warnings"
	}
	_ = writeJSON(w, http.StatusOK, responses.GenerateResponse{
		Success:     true,
		Message:     msg,
		BuildID:     res.BuildID,
		DownloadURL: res.Artifact.DownloadURL,
		FileSize:    res.Artifact.Size,
		SHA256:      res.Artifact.SHA256,
		Recovered:   res.Report != nil && res.Report.Recovered,
		Warnings:    res.Warnings(),
	})
}
