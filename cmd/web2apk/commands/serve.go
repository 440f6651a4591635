package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/config"
	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/metrics"
	"git.home.luguber.info/inful/web2apk/internal/notify"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
	"git.home.luguber.info/inful/web2apk/internal/publish"
	"git.home.luguber.info/inful/web2apk/internal/queue"
	"git.home.luguber.info/inful/web2apk/internal/retention"
	"git.home.luguber.info/inful/web2apk/internal/server/handlers"
	"git.home.luguber.info/inful/web2apk/internal/server/httpserver"
	"git.home.luguber.info/inful/web2apk/internal/version"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `name:"addr" help:"Listen address (overrides server.addr)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadedConfig()
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	for _, dir := range []string{cfg.Paths.TempDir, cfg.Paths.UploadsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := environmentSource(ctx, cfg)
	if c, ok := env.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}

	var (
		opts           []pipeline.Option
		recorder       metrics.Recorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
		history        handlers.HistorySource
		pruner         retention.EventPruner
	)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		rec := metrics.NewPrometheusRecorder(reg)
		recorder = rec
		metricsHandler = metrics.HTTPHandler(reg)
		opts = append(opts, pipeline.WithObserver(pipeline.MetricsObserver{Recorder: rec}))
	}

	lg, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	if lg != nil {
		defer lg.Close()
		opts = append(opts, pipeline.WithObserver(pipeline.EventObserver{Emitter: lg.emitter}))
		history = lg.projection
		pruner = lg.store
	}

	if cfg.Notify.URL != "" {
		n, err := notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			// Notifications are advisory; serve without them.
			slog.Warn("NATS unavailable, build notifications disabled", logfields.Error(err))
		} else {
			defer n.Close()
			opts = append(opts, pipeline.WithObserver(n))
		}
	}

	p := newPipeline(cfg, env, pub, opts...)

	q := queue.New(cfg.Build.QueueSize, cfg.Build.MaxConcurrent, p)
	q.SetRecorder(recorder)
	q.Start(ctx)

	if maxAge := cfg.RetentionMaxAge(); maxAge > 0 {
		interval := cfg.RetentionInterval()
		if interval <= 0 {
			interval = time.Hour
		}
		sweeper := retention.NewSweeper(maxAge, pruner, cfg.Paths.BuildsDir, cfg.Paths.UploadsDir)
		sweeper.InUse = q.HoldsFile
		sched, err := retention.NewScheduler(sweeper, interval)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	srv := httpserver.New(httpserver.Options{
		Addr:       cfg.Server.Addr,
		UploadsDir: cfg.Paths.UploadsDir,
		PublicDir:  cfg.Server.PublicDir,
		Limits: handlers.UploadLimits{
			MaxFileBytes: cfg.Server.MaxUploadBytes,
			MaxFiles:     cfg.Server.MaxFiles,
		},
		Version:        version.Version,
		Submitter:      q,
		Publisher:      pub,
		Status:         serviceStatus{queue: q, env: env, publisher: pub},
		History:        history,
		MetricsPath:    cfg.Metrics.Path,
		MetricsHandler: metricsHandler,
	})
	if err := srv.Start(ctx); err != nil {
		q.Stop(ctx)
		return err
	}
	slog.Info("web2apk service ready",
		slog.String("addr", srv.Addr().String()),
		slog.Int("workers", cfg.Build.MaxConcurrent),
		slog.Bool("gradle_offline", env.Current().Offline))

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", logfields.Error(err))
	}
	q.Stop(shutdownCtx)
	return nil
}

// environmentSource prefers a watcher over the distribution archive and
// falls back to per-run detection when its directory cannot be watched.
func environmentSource(ctx context.Context, cfg *config.Config) gradle.EnvironmentSource {
	path := cfg.Paths.GradleDistribution
	w, err := gradle.NewWatcher(path)
	if err != nil {
		slog.Info("Watching the Gradle distribution is unavailable, detecting per build",
			logfields.Path(path), logfields.Error(err))
		return gradle.NewDetector(path)
	}
	go w.Run(ctx)
	return w
}

// serviceStatus feeds the health endpoint.
type serviceStatus struct {
	queue     *queue.BuildQueue
	env       gradle.EnvironmentSource
	publisher *publish.Publisher
}

func (s serviceStatus) ActiveJobs() int     { return len(s.queue.GetActiveJobs()) }
func (s serviceStatus) QueueDepth() int     { return s.queue.Length() }
func (s serviceStatus) GradleOffline() bool { return s.env.Current().Offline }
func (s serviceStatus) Mirroring() bool     { return s.publisher.HasMirror() }
