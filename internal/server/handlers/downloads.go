package handlers

import (
	"net/http"
	"os"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/publish"
)

// DownloadHandlers serves published APKs.
type DownloadHandlers struct {
	publisher *publish.Publisher
	adapter   *errors.HTTPErrorAdapter
}

// NewDownloadHandlers serves files resolved by publisher.
func NewDownloadHandlers(p *publish.Publisher, adapter *errors.HTTPErrorAdapter) *DownloadHandlers {
	return &DownloadHandlers{publisher: p, adapter: adapter}
}

// HandleDownload serves GET /downloads/{filename} as an attachment.
func (h *DownloadHandlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := h.publisher.Resolve(name)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	f, err := os.Open(path) // #nosec G304 -- resolved inside the builds directory
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, errors.NotFoundError("file not found").WithContext("file", name).Build())
		return
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, errors.FileSystemError("download failed").WithCause(err).Build())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
