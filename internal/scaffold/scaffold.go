package scaffold

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/icon"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
	"git.home.luguber.info/inful/web2apk/internal/procexec"
)

// StepName identifies a scaffold step in errors and logs.
type StepName string

const (
	StepWriteManifest        StepName = "write-manifest"
	StepInstallCore          StepName = "install-core"
	StepWriteCapacitorConfig StepName = "write-capacitor-config"
	StepInstallAndroid       StepName = "install-android"
	StepAddPlatform          StepName = "add-platform"
	StepInstallIcons         StepName = "install-icons"
)

// Toolchain names the package manager binaries.
type Toolchain struct {
	NPM string
	NPX string
}

// Params describe the project to scaffold.
type Params struct {
	Root        string // workspace root; package.json lands here
	AppName     string
	PackageName string
	Version     string
	IconDir     string // rasterized icon tree; empty skips icon installation
}

// Step is one ordered scaffold action.
type Step struct {
	Name StepName
	Run  func(ctx context.Context, p Params) (procexec.Result, error)
}

// Scaffolder runs the bootstrap sequence.
type Scaffolder struct {
	runner    procexec.Runner
	toolchain Toolchain
}

// New returns a Scaffolder driving tools through runner.
func New(runner procexec.Runner, toolchain Toolchain) *Scaffolder {
	if toolchain.NPM == "" {
		toolchain.NPM = "npm"
	}
	if toolchain.NPX == "" {
		toolchain.NPX = "npx"
	}
	return &Scaffolder{runner: runner, toolchain: toolchain}
}

// Steps returns the bootstrap sequence in execution order.
func (s *Scaffolder) Steps() []Step {
	return []Step{
		{Name: StepWriteManifest, Run: s.writeManifest},
		{Name: StepInstallCore, Run: s.npm("install", "@capacitor/core", "@capacitor/cli")},
		{Name: StepWriteCapacitorConfig, Run: s.writeCapacitorConfig},
		{Name: StepInstallAndroid, Run: s.npm("install", "@capacitor/android")},
		{Name: StepAddPlatform, Run: s.npx("cap", "add", "android")},
		{Name: StepInstallIcons, Run: s.installIcons},
	}
}

// Scaffold runs every step in order. The first failure aborts with a
// ScaffoldError naming the step; nothing is retried.
func (s *Scaffolder) Scaffold(ctx context.Context, p Params) error {
	for _, step := range s.Steps() {
		if err := ctx.Err(); err != nil {
			return errors.CanceledError("scaffolding canceled").
				WithCause(err).
				WithContext("step", string(step.Name)).
				Build()
		}

		start := time.Now()
		res, err := step.Run(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.CanceledError("scaffolding canceled").
					WithCause(ctxErr).
					WithContext("step", string(step.Name)).
					Build()
			}
			slog.Error("Scaffold step failed",
				logfields.Step(string(step.Name)),
				logfields.Error(err),
				slog.String("output", res.Tail()))
			return errors.ScaffoldError(fmt.Sprintf("scaffold step %s failed", step.Name)).
				WithCause(err).
				WithContext("step", string(step.Name)).
				WithContext("output", res.Tail()).
				Build()
		}
		slog.Info("Scaffold step completed",
			logfields.Step(string(step.Name)),
			logfields.Duration(time.Since(start)))
	}
	return nil
}

func (s *Scaffolder) npm(args ...string) func(context.Context, Params) (procexec.Result, error) {
	return s.tool(s.toolchain.NPM, args...)
}

func (s *Scaffolder) npx(args ...string) func(context.Context, Params) (procexec.Result, error) {
	return s.tool(s.toolchain.NPX, args...)
}

func (s *Scaffolder) tool(name string, args ...string) func(context.Context, Params) (procexec.Result, error) {
	return func(ctx context.Context, p Params) (procexec.Result, error) {
		return s.runner.Run(ctx, procexec.Command{Name: name, Args: args, Dir: p.Root})
	}
}

func (s *Scaffolder) writeManifest(_ context.Context, p Params) (procexec.Result, error) {
	return procexec.Result{}, writeJSON(filepath.Join(p.Root, "package.json"), NewPackageManifest(p.AppName, p.Version))
}

func (s *Scaffolder) writeCapacitorConfig(_ context.Context, p Params) (procexec.Result, error) {
	return procexec.Result{}, writeJSON(filepath.Join(p.Root, "capacitor.config.json"), NewCapacitorConfig(p.PackageName, p.AppName))
}

// installIcons copies the rasterized buckets into the generated project's
// resource tree as both the square and round launcher icon.
func (s *Scaffolder) installIcons(_ context.Context, p Params) (procexec.Result, error) {
	if p.IconDir == "" {
		return procexec.Result{}, nil
	}
	resDir := filepath.Join(p.Root, "android", "app", "src", "main", "res")
	if _, err := os.Stat(resDir); err != nil {
		return procexec.Result{}, fmt.Errorf("android resource directory missing: %w", err)
	}

	for _, b := range icon.Buckets {
		src := filepath.Join(p.IconDir, b.Name, icon.FileName)
		data, err := os.ReadFile(src) // #nosec G304 -- inside the workspace
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return procexec.Result{}, err
		}
		dst := filepath.Join(resDir, b.Name)
		if err := os.MkdirAll(dst, 0o750); err != nil {
			return procexec.Result{}, err
		}
		for _, name := range []string{"ic_launcher.png", "ic_launcher_round.png"} {
			if err := os.WriteFile(filepath.Join(dst, name), data, 0o644); err != nil {
				return procexec.Result{}, err
			}
		}
	}
	return procexec.Result{}, nil
}
