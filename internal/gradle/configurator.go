package gradle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// Options configure the generated build settings.
type Options struct {
	Mirrors  []string
	JVMHeap  string
	Encoding string
}

// Configurator rewrites the Gradle configuration of a generated project.
type Configurator struct {
	repos    []Repository
	heap     string
	encoding string
}

// NewConfigurator builds a configurator; empty options fall back to a 2 GiB
// heap and UTF-8.
func NewConfigurator(opts Options) *Configurator {
	c := &Configurator{
		repos:    ParseRepositories(opts.Mirrors),
		heap:     opts.JVMHeap,
		encoding: opts.Encoding,
	}
	if c.heap == "" {
		c.heap = "2048m"
	}
	if c.encoding == "" {
		c.encoding = "UTF-8"
	}
	return c
}

// Configure applies every setting to the project in androidDir. Failures do
// not stop later settings; each one is returned as an advisory.
func (c *Configurator) Configure(ctx context.Context, androidDir string, env Environment, version AppVersion) []*errors.ClassifiedError {
	tasks := []struct {
		step string
		fn   func() error
	}{
		{"repositories", func() error { return c.configureRepositories(androidDir) }},
		{"properties", func() error { return c.configureProperties(androidDir, env) }},
		{"wrapper", func() error { return c.configureWrapper(androidDir, env) }},
		{"app-version", func() error { return c.configureVersion(androidDir, version) }},
	}

	var advisories []*errors.ClassifiedError
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		if err := t.fn(); err != nil {
			adv := errors.GradleConfigError(fmt.Sprintf("gradle %s configuration skipped", t.step)).
				WithCause(err).
				WithContext("step", t.step).
				Build()
			slog.Warn("Gradle configuration step failed",
				logfields.Step(t.step),
				logfields.Error(err))
			advisories = append(advisories, adv)
		}
	}
	if env.Offline {
		slog.Info("Gradle configured for offline distribution", logfields.Path(env.OfflineDistribution))
	} else {
		slog.Info("Gradle configured for mirrored repositories", slog.Int("repositories", len(c.repos)))
	}
	return advisories
}

func (c *Configurator) configureRepositories(androidDir string) error {
	path := filepath.Join(androidDir, "build.gradle")
	data, err := os.ReadFile(path) // #nosec G304 -- generated project file
	if err != nil {
		return err
	}
	out, n := ApplyRepositories(string(data), c.repos)
	if n == 0 {
		return fmt.Errorf("no repositories blocks in %s", path)
	}
	return renameio.WriteFile(path, []byte(out), 0o644)
}

func (c *Configurator) configureProperties(androidDir string, env Environment) error {
	path := filepath.Join(androidDir, "gradle.properties")
	props, err := loadProperties(path)
	if err != nil {
		return err
	}
	if err := NewProperties(c.heap, c.encoding, env).Apply(props); err != nil {
		return err
	}
	return writeProperties(path, props)
}

// configureWrapper points the wrapper at the local archive after keeping a
// .bak copy. Online mode leaves the wrapper untouched.
func (c *Configurator) configureWrapper(androidDir string, env Environment) error {
	if !env.Offline {
		return nil
	}
	path := filepath.Join(androidDir, "gradle", "wrapper", "gradle-wrapper.properties")
	orig, err := os.ReadFile(path) // #nosec G304 -- generated project file
	if stderrors.Is(err, os.ErrNotExist) {
		slog.Debug("No wrapper properties to rewrite", logfields.Path(path))
		return nil
	}
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path+".bak", orig, 0o644); err != nil {
		return fmt.Errorf("backup wrapper properties: %w", err)
	}
	props, err := NewWrapperProperties(env.OfflineDistribution).toProperties()
	if err != nil {
		return err
	}
	return writeProperties(path, props)
}

func (c *Configurator) configureVersion(androidDir string, v AppVersion) error {
	if v.Name == "" || v.Code <= 0 {
		return nil
	}
	path := filepath.Join(androidDir, "app", "build.gradle")
	data, err := os.ReadFile(path) // #nosec G304 -- generated project file
	if err != nil {
		return err
	}
	out, ok := ApplyAppVersion(string(data), v)
	if !ok {
		return fmt.Errorf("no defaultConfig block in %s", path)
	}
	return renameio.WriteFile(path, []byte(out), 0o644)
}
