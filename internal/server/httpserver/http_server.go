// Package httpserver wires the conversion API, downloads, health and metrics
// endpoints onto a single listener.
package httpserver

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/publish"
	"git.home.luguber.info/inful/web2apk/internal/server/handlers"
	smw "git.home.luguber.info/inful/web2apk/internal/server/middleware"
)

// Options configure the server.
type Options struct {
	Addr       string
	UploadsDir string
	PublicDir  string // static front-end; skipped when missing
	Limits     handlers.UploadLimits
	Version    string

	Submitter handlers.Submitter
	Publisher *publish.Publisher
	Status    handlers.StatusProvider
	History   handlers.HistorySource // nil disables /api/builds

	MetricsPath    string
	MetricsHandler http.Handler // nil disables metrics
}

// Server serves the HTTP API.
type Server struct {
	opts         Options
	httpServer   *http.Server
	errorAdapter *errors.HTTPErrorAdapter
	mchain       func(http.Handler) http.Handler
	addr         net.Addr
}

// New constructs the server.
func New(opts Options) *Server {
	adapter := errors.NewHTTPErrorAdapter(slog.Default())
	return &Server{
		opts:         opts,
		errorAdapter: adapter,
		mchain:       smw.Chain(slog.Default(), adapter),
	}
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	gen := handlers.NewGenerateHandlers(s.opts.Submitter, s.opts.UploadsDir, s.opts.Limits, s.errorAdapter)
	mux.HandleFunc("POST /api/generate-apk", gen.HandleGenerate)

	dl := handlers.NewDownloadHandlers(s.opts.Publisher, s.errorAdapter)
	mux.HandleFunc("GET /downloads/{filename}", dl.HandleDownload)

	mon := handlers.NewMonitoringHandlers(s.opts.Status, s.opts.Version)
	mux.HandleFunc("GET /healthz", mon.HandleHealthCheck)

	if s.opts.History != nil {
		hist := handlers.NewHistoryHandlers(s.opts.History, s.errorAdapter)
		mux.HandleFunc("GET /api/builds", hist.HandleList)
		mux.HandleFunc("GET /api/builds/{id}", hist.HandleGet)
	}

	if s.opts.MetricsHandler != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.opts.MetricsHandler)
	}

	if s.opts.PublicDir != "" {
		if info, err := os.Stat(s.opts.PublicDir); err == nil && info.IsDir() {
			mux.Handle("GET /", http.FileServer(http.Dir(s.opts.PublicDir)))
		}
	}

	return s.mchain(mux)
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", slog.String("error", err.Error()))
		}
	}()
	slog.Info("HTTP server started", slog.String("addr", s.addr.String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr { return s.addr }

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
