package commands

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/web2apk/internal/build"
	"git.home.luguber.info/inful/web2apk/internal/cleanup"
	"git.home.luguber.info/inful/web2apk/internal/config"
	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/eventstore"
	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/icon"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
	"git.home.luguber.info/inful/web2apk/internal/procexec"
	"git.home.luguber.info/inful/web2apk/internal/publish"
	"git.home.luguber.info/inful/web2apk/internal/scaffold"
	"git.home.luguber.info/inful/web2apk/internal/workspace"
)

const (
	defaultIconName = "default-icon.png"
	historySize     = 200
)

// newPipeline assembles the conversion pipeline from configuration.
func newPipeline(cfg *config.Config, env gradle.EnvironmentSource, pub *publish.Publisher, opts ...pipeline.Option) *pipeline.Pipeline {
	runner := procexec.NewExecRunner()
	deps := pipeline.Deps{
		Workspaces: workspace.NewRegistry(cfg.Paths.TempDir),
		Icons:      icon.NewProcessor(filepath.Join(cfg.Paths.AssetsDir, defaultIconName)),
		Stager:     content.NewStager(),
		Scaffolder: scaffold.New(runner, scaffold.Toolchain{
			NPM: cfg.Toolchain.NPM,
			NPX: cfg.Toolchain.NPX,
		}),
		Configurator: gradle.NewConfigurator(gradle.Options{
			Mirrors:  cfg.Gradle.Mirrors,
			JVMHeap:  cfg.Gradle.JVMHeap,
			Encoding: cfg.Gradle.Encoding,
		}),
		Environment: env,
		Executor: build.NewExecutor(runner, build.Toolchain{
			NPX:     cfg.Toolchain.NPX,
			Gradle:  cfg.Toolchain.Gradle,
			Wrapper: cfg.Toolchain.Wrapper,
		}, cfg.RecoveryEnabled()),
		Publisher: pub,
		Cleanup:   cleanup.NewCoordinator(),
	}
	opts = append([]pipeline.Option{pipeline.WithTimeout(cfg.BuildTimeout())}, opts...)
	return pipeline.New(deps, opts...)
}

// newPublisher returns the builds-directory publisher, mirroring to MinIO
// when an object store endpoint is configured.
func newPublisher(cfg *config.Config) (*publish.Publisher, error) {
	if err := os.MkdirAll(cfg.Paths.BuildsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create builds directory: %w", err)
	}
	store := cfg.ObjectStore
	if store.Endpoint == "" {
		return publish.NewPublisher(cfg.Paths.BuildsDir), nil
	}
	mirror, err := publish.NewMinioMirror(publish.MinioConfig{
		Endpoint:  store.Endpoint,
		AccessKey: store.AccessKey,
		SecretKey: store.SecretKey,
		Region:    store.Region,
		Bucket:    store.Bucket,
		UseSSL:    store.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("configure object store mirror: %w", err)
	}
	slog.Info("Mirroring artifacts to object store", slog.String("endpoint", store.Endpoint), logfields.Bucket(store.Bucket))
	return publish.NewPublisher(cfg.Paths.BuildsDir, publish.WithMirror(mirror)), nil
}

// ledger bundles the SQLite event store with its history projection.
type ledger struct {
	store      *eventstore.SQLiteStore
	projection *eventstore.BuildHistoryProjection
	emitter    *eventstore.Emitter
}

// openLedger opens the build ledger, or returns nil when events are disabled.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger, error) {
	if cfg.Events.Path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Events.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create events directory: %w", err)
		}
	}
	store, err := eventstore.NewSQLiteStore(cfg.Events.Path)
	if err != nil {
		return nil, fmt.Errorf("open build ledger: %w", err)
	}
	projection := eventstore.NewBuildHistoryProjection(store, historySize)
	if err := projection.Rebuild(ctx); err != nil {
		slog.Warn("Failed to rebuild build history", logfields.Error(err))
	}
	return &ledger{store: store, projection: projection, emitter: eventstore.NewEmitter(store, projection)}, nil
}

func (l *ledger) Close() {
	if err := l.store.Close(); err != nil {
		slog.Warn("Failed to close build ledger", logfields.Error(err))
	}
}

// collectWebFiles lists the regular files under dir as bundle entries.
// An empty dir yields no files and the pipeline writes a placeholder page.
func collectWebFiles(dir string) ([]content.File, error) {
	if dir == "" {
		return nil, nil
	}
	var files []content.File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, content.File{RelPath: filepath.ToSlash(rel), SourcePath: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan web directory: %w", err)
	}
	return files, nil
}
