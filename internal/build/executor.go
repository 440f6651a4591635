package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/procexec"
)

// Sentinel causes for build failures, usable with errors.Is.
var (
	ErrSyncFailed          = stderrors.New("sync-failed")
	ErrStrategiesExhausted = stderrors.New("all-strategies-exhausted")
)

// ArtifactRelPath is the debug APK location inside the android project.
var ArtifactRelPath = filepath.Join("app", "build", "outputs", "apk", "debug", "app-debug.apk")

// State is a step of the executor state machine.
type State string

const (
	StateSyncContent      State = "sync_content"
	StateEnvironmentCheck State = "environment_check"
	StateBuilding         State = "building"
	StateRecovering       State = "recovering"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Toolchain names the executables the executor drives.
type Toolchain struct {
	NPX     string
	Gradle  string
	Wrapper string // relative to the android project
}

// Params describe one build.
type Params struct {
	ProjectDir string // workspace root holding capacitor.config.json
	AndroidDir string
	Env        gradle.Environment
	Manifest   *content.Manifest // staged content fingerprint for recovery
	StartedAt  time.Time         // artifacts older than this are never recovered

	// OnAttempt, when set, observes every finished strategy attempt.
	OnAttempt func(Attempt)
}

// Outcome is the result of a successful Execute.
type Outcome struct {
	ArtifactPath string
	Recovered    bool
	Attempts     []Attempt
	States       []State
	Advisories   []*errors.ClassifiedError
}

// Executor runs the build state machine.
type Executor struct {
	runner    procexec.Runner
	toolchain Toolchain
	recovery  bool
}

// NewExecutor returns an executor. recovery enables reuse of a fresh
// artifact when every strategy failed.
func NewExecutor(runner procexec.Runner, toolchain Toolchain, recovery bool) *Executor {
	if toolchain.NPX == "" {
		toolchain.NPX = "npx"
	}
	if toolchain.Gradle == "" {
		toolchain.Gradle = "gradle"
	}
	if toolchain.Wrapper == "" {
		toolchain.Wrapper = "gradlew"
	}
	return &Executor{runner: runner, toolchain: toolchain, recovery: recovery}
}

// Execute drives sync_content → environment_check → building → recovering
// and returns the artifact or a terminal error.
func (e *Executor) Execute(ctx context.Context, p Params) (*Outcome, error) {
	out := &Outcome{}
	enter := func(s State) {
		out.States = append(out.States, s)
		slog.Debug("Build state", slog.String("state", string(s)))
	}

	enter(StateSyncContent)
	if res, err := e.runner.Run(ctx, procexec.Command{Name: e.toolchain.NPX, Args: []string{"cap", "copy"}, Dir: p.ProjectDir}); err != nil {
		enter(StateFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, canceled(ctxErr)
		}
		return out, errors.BuildError("failed to sync web content into the android project").
			WithCause(fmt.Errorf("%w: %w", ErrSyncFailed, err)).
			WithContext("reason", ErrSyncFailed.Error()).
			WithContext("output", res.Tail()).
			Build()
	}

	enter(StateEnvironmentCheck)
	if res, err := e.runner.Run(ctx, procexec.Command{Name: e.toolchain.NPX, Args: []string{"cap", "doctor", "android"}, Dir: p.ProjectDir}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			enter(StateFailed)
			return out, canceled(ctxErr)
		}
		slog.Warn("Android environment check failed, build may not succeed", logfields.Error(err))
		out.Advisories = append(out.Advisories,
			errors.NewError(errors.CategoryBuild, "android environment check failed").
				WithCause(err).
				Warning().
				WithContext("step", "doctor").
				WithContext("output", res.Tail()).
				Build())
	}

	enter(StateBuilding)
	artifact := filepath.Join(p.AndroidDir, ArtifactRelPath)
	plan := Plan(e.detect(ctx, p.AndroidDir), e.toolchain.Gradle, e.wrapperPath(p.AndroidDir), p.Env)
	if len(plan) == 0 {
		slog.Warn("No Gradle installation or wrapper script found")
	}
	for _, s := range plan {
		a := e.attempt(ctx, s, p.AndroidDir, artifact)
		out.Attempts = append(out.Attempts, a)
		if p.OnAttempt != nil {
			p.OnAttempt(a)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			enter(StateFailed)
			return out, canceled(ctxErr)
		}
		if a.Succeeded() {
			out.ArtifactPath = a.ArtifactPath
			enter(StateDone)
			return out, nil
		}
	}

	enter(StateRecovering)
	if e.recovery && recoverable(artifact, p) {
		slog.Warn("All build strategies failed, using artifact produced during this run", logfields.Path(artifact))
		out.ArtifactPath = artifact
		out.Recovered = true
		enter(StateDone)
		return out, nil
	}

	enter(StateFailed)
	return out, exhausted(out.Attempts)
}

// detect looks for a system Gradle and the project wrapper.
func (e *Executor) detect(ctx context.Context, androidDir string) Availability {
	var avail Availability
	if _, err := e.runner.Run(ctx, procexec.Command{Name: e.toolchain.Gradle, Args: []string{"--version"}, Dir: androidDir}); err == nil {
		avail.System = true
	}
	wrapper := e.wrapperPath(androidDir)
	if info, err := os.Stat(wrapper); err == nil && !info.IsDir() {
		if info.Mode()&0o100 == 0 {
			// npm sometimes unpacks the wrapper without the exec bit.
			_ = os.Chmod(wrapper, info.Mode()|0o100)
		}
		avail.Wrapper = true
	}
	slog.Info("Detected Gradle entry points",
		slog.Bool("system", avail.System),
		slog.Bool("wrapper", avail.Wrapper))
	return avail
}

func (e *Executor) wrapperPath(androidDir string) string {
	if filepath.IsAbs(e.toolchain.Wrapper) {
		return e.toolchain.Wrapper
	}
	return filepath.Join(androidDir, e.toolchain.Wrapper)
}

func (e *Executor) attempt(ctx context.Context, s Strategy, androidDir, artifact string) Attempt {
	slog.Info("Trying build strategy", logfields.Strategy(s.Name()), logfields.Command(s.String()))
	start := time.Now()
	res, err := e.runner.Run(ctx, procexec.Command{Name: s.Command, Args: s.Args(), Dir: androidDir})
	d := time.Since(start)

	if err != nil {
		diag := res.Tail()
		if diag == "" {
			diag = err.Error()
		}
		slog.Warn("Build strategy failed",
			logfields.Strategy(s.Name()),
			logfields.Duration(d),
			logfields.Error(err))
		return Failed(s, diag, d)
	}
	if _, statErr := os.Stat(artifact); statErr != nil {
		slog.Warn("Build strategy finished without artifact", logfields.Strategy(s.Name()), logfields.Path(artifact))
		return Failed(s, fmt.Sprintf("%s exited cleanly but %s was not produced", s.Name(), ArtifactRelPath), d)
	}
	slog.Info("Build strategy succeeded", logfields.Strategy(s.Name()), logfields.Duration(d))
	return Succeeded(s, artifact, d)
}

// recoverable accepts an artifact only if it was written during this run
// and the staged content still matches what was built.
func recoverable(artifact string, p Params) bool {
	info, err := os.Stat(artifact)
	if err != nil || info.IsDir() {
		return false
	}
	// Coarse filesystem timestamps can round down.
	if info.ModTime().Before(p.StartedAt.Truncate(time.Second)) {
		slog.Warn("Ignoring artifact older than this run", logfields.Path(artifact))
		return false
	}
	if p.Manifest != nil && !p.Manifest.Unchanged() {
		slog.Warn("Ignoring artifact, staged content changed since staging", logfields.Path(artifact))
		return false
	}
	return true
}

func exhausted(attempts []Attempt) error {
	var diags []string
	from := max(len(attempts)-2, 0)
	for _, a := range attempts[from:] {
		diags = append(diags, fmt.Sprintf("[%s] %s", a.Strategy.Name(), a.Diagnostic))
	}
	msg := "all build strategies failed"
	if len(attempts) == 0 {
		msg = "no Gradle installation or wrapper script available"
	}
	return errors.BuildError(msg).
		WithCause(ErrStrategiesExhausted).
		WithContext("reason", ErrStrategiesExhausted.Error()).
		WithContext("attempts", len(attempts)).
		WithContext("output", strings.Join(diags, "\n")).
		Build()
}

func canceled(err error) error {
	return errors.CanceledError("build canceled").WithCause(err).Build()
}
