package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter handles error presentation and status code determination for HTTP handlers.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter.
// If logger is nil, the default logger is used.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload. The shape matches the
// success payload of the conversion endpoint (success/message).
type HTTPErrorResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// publicContextKeys lists the context keys safe to show to API callers.
// Subprocess output and host paths ("path") stay in operator logs; "file"
// carries names the caller supplied.
var publicContextKeys = []string{"step", "bucket", "stage", "reason", "package", "field", "file"}

// StatusCodeFor determines the HTTP status code for a given error based on
// its classification. Unknown errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	c, ok := AsClassified(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch c.Category() {
	case CategoryValidation, CategoryConfig:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryAlreadyExists:
		return http.StatusConflict
	case CategoryIcon, CategoryContent:
		return http.StatusUnprocessableEntity
	case CategoryCanceled:
		return http.StatusGatewayTimeout
	case CategoryNetwork:
		return http.StatusBadGateway
	case CategoryRuntime:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response and logs with appropriate level.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	status := a.StatusCodeFor(err)
	b, jerr := json.Marshal(a.FormatErrorResponse(err))
	if jerr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)

	if c, ok := AsClassified(err); ok {
		a.logger.Log(r.Context(), slogLevelFromSeverity(c.Severity()), c.Error(),
			slog.String("category", string(c.Category())),
			slog.Int("status", status))
		return
	}
	a.logger.Error(err.Error(), slog.Int("status", status))
}

// FormatErrorResponse converts known errors into a canonical error payload.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{Success: true}
	}
	c, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Message: "internal error"}
	}
	resp := HTTPErrorResponse{Message: c.Message(), Code: string(c.Category())}
	for _, key := range publicContextKeys {
		if v, exists := c.Context().Get(key); exists {
			if resp.Details == nil {
				resp.Details = make(map[string]any)
			}
			resp.Details[key] = v
		}
	}
	resp.Retryable = c.CanRetry()
	return resp
}

func slogLevelFromSeverity(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
