package build

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/content"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/procexec"
)

var offlineEnv = gradle.Environment{OfflineDistribution: "/opt/lib/gradle-7.0-bin.zip", Offline: true}

func names(plan []Strategy) []string {
	out := make([]string, len(plan))
	for i, s := range plan {
		out[i] = s.Name()
	}
	return out
}

func TestPlan_Order(t *testing.T) {
	tests := []struct {
		name  string
		avail Availability
		env   gradle.Environment
		want  []string
	}{
		{
			name:  "both tools offline",
			avail: Availability{System: true, Wrapper: true},
			env:   offlineEnv,
			want: []string{
				"system-offline", "system-online", "system-no-daemon-offline", "system-no-daemon-online",
				"wrapper-offline", "wrapper-online", "wrapper-no-daemon-offline", "wrapper-no-daemon-online",
			},
		},
		{
			name:  "both tools online",
			avail: Availability{System: true, Wrapper: true},
			want:  []string{"system-online", "system-no-daemon-online", "wrapper-online", "wrapper-no-daemon-online"},
		},
		{
			name:  "wrapper only offline",
			avail: Availability{Wrapper: true},
			env:   offlineEnv,
			want:  []string{"wrapper-offline", "wrapper-online", "wrapper-no-daemon-offline", "wrapper-no-daemon-online"},
		},
		{
			name:  "system only online",
			avail: Availability{System: true},
			want:  []string{"system-online", "system-no-daemon-online"},
		},
		{
			name: "nothing available",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Plan(tt.avail, "gradle", "/p/gradlew", tt.env)))
		})
	}
}

func TestStrategy_Args(t *testing.T) {
	s := Strategy{Tool: ToolSystem, Command: "gradle", NoDaemon: true, Offline: true}
	assert.Equal(t, []string{"assembleDebug", "--no-daemon", "--offline"}, s.Args())
	assert.Equal(t, "gradle assembleDebug --no-daemon --offline", s.String())
	assert.Equal(t, []string{"assembleDebug"}, Strategy{Command: "gradle"}.Args())
}

type fixture struct {
	root     string
	android  string
	artifact string
	wrapper  string
}

func newFixture(t *testing.T, withWrapper bool) fixture {
	t.Helper()
	root := t.TempDir()
	android := filepath.Join(root, "android")
	require.NoError(t, os.MkdirAll(android, 0o750))
	f := fixture{
		root:     root,
		android:  android,
		artifact: filepath.Join(android, ArtifactRelPath),
		wrapper:  filepath.Join(android, "gradlew"),
	}
	if withWrapper {
		require.NoError(t, os.WriteFile(f.wrapper, []byte("#!/bin/sh\n"), 0o600))
	}
	return f
}

func (f fixture) params(env gradle.Environment) Params {
	return Params{ProjectDir: f.root, AndroidDir: f.android, Env: env, StartedAt: time.Now()}
}

func (f fixture) writeArtifact(procexec.Command) error {
	if err := os.MkdirAll(filepath.Dir(f.artifact), 0o750); err != nil {
		return err
	}
	return os.WriteFile(f.artifact, []byte("apk"), 0o600)
}

func TestExecute_StopsAtFirstSuccess(t *testing.T) {
	f := newFixture(t, true)
	fake := procexec.NewFakeRunner().
		On("gradle assembleDebug --offline", procexec.Fail("could not resolve")).
		On("gradle assembleDebug", procexec.FakeResponse{Do: f.writeArtifact})

	var observed []string
	ex := NewExecutor(fake, Toolchain{}, true)
	p := f.params(offlineEnv)
	p.OnAttempt = func(a Attempt) { observed = append(observed, a.Strategy.Name()+":"+a.Result()) }

	out, err := ex.Execute(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, f.artifact, out.ArtifactPath)
	assert.False(t, out.Recovered)
	assert.Equal(t, []string{"system-offline:failed", "system-online:success"}, observed)
	assert.Equal(t, []State{StateSyncContent, StateEnvironmentCheck, StateBuilding, StateDone}, out.States)

	assert.Equal(t, []string{
		"npx cap copy",
		"npx cap doctor android",
		"gradle --version",
		"gradle assembleDebug --offline",
		"gradle assembleDebug",
	}, fake.CommandLines())
	for _, c := range fake.Calls()[3:] {
		assert.Equal(t, f.android, c.Dir)
	}
	assert.Equal(t, f.root, fake.Calls()[0].Dir)
}

func TestExecute_FallsBackToWrapper(t *testing.T) {
	f := newFixture(t, true)
	fake := procexec.NewFakeRunner().
		On("gradle --version", procexec.Fail("command not found")).
		On(f.wrapper+" assembleDebug --no-daemon", procexec.FakeResponse{Do: f.writeArtifact}).
		On(f.wrapper+" assembleDebug", procexec.Fail("daemon disappeared"))

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.NoError(t, err)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, "wrapper-online", out.Attempts[0].Strategy.Name())
	assert.Equal(t, "wrapper-no-daemon-online", out.Attempts[1].Strategy.Name())

	info, err := os.Stat(f.wrapper)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100, "wrapper made executable")
}

func TestExecute_SuccessWithoutArtifactIsFailure(t *testing.T) {
	f := newFixture(t, false)
	fake := procexec.NewFakeRunner()

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.Error(t, err)
	require.Len(t, out.Attempts, 2)
	for _, a := range out.Attempts {
		assert.False(t, a.Succeeded())
		assert.Contains(t, a.Diagnostic, "was not produced")
	}
}

func TestExecute_SyncFailureIsFatal(t *testing.T) {
	f := newFixture(t, true)
	fake := procexec.NewFakeRunner().On("npx cap copy", procexec.Fail("capacitor.config.json missing"))

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(offlineEnv))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrSyncFailed))
	assert.True(t, errors.HasCategory(err, errors.CategoryBuild))
	assert.Equal(t, "sync-failed", errors.ContextString(err, "reason"))
	assert.Contains(t, errors.ContextString(err, "output"), "capacitor.config.json missing")
	assert.Equal(t, []string{"npx cap copy"}, fake.CommandLines())
	assert.Equal(t, []State{StateSyncContent, StateFailed}, out.States)
}

func TestExecute_DoctorFailureIsAdvisory(t *testing.T) {
	f := newFixture(t, false)
	fake := procexec.NewFakeRunner().
		On("npx cap doctor android", procexec.Fail("Android SDK not found")).
		On("gradle assembleDebug", procexec.FakeResponse{Do: f.writeArtifact})

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.NoError(t, err)
	require.Len(t, out.Advisories, 1)
	assert.True(t, out.Advisories[0].IsAdvisory())
	assert.Equal(t, "doctor", errors.ContextString(out.Advisories[0], "step"))
}

func TestExecute_ExhaustedCarriesLastTwoDiagnostics(t *testing.T) {
	f := newFixture(t, true)
	fake := procexec.NewFakeRunner().
		On("gradle assembleDebug --no-daemon", procexec.Fail("system no-daemon failure")).
		On("gradle assembleDebug", procexec.Fail("system failure")).
		On(f.wrapper+" assembleDebug --no-daemon", procexec.Fail("wrapper no-daemon failure")).
		On(f.wrapper+" assembleDebug", procexec.Fail("wrapper failure"))

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrStrategiesExhausted))
	assert.Len(t, out.Attempts, 4)

	output := errors.ContextString(err, "output")
	assert.Contains(t, output, "[wrapper-online] wrapper failure")
	assert.Contains(t, output, "[wrapper-no-daemon-online] wrapper no-daemon failure")
	assert.NotContains(t, output, "system failure")
	assert.Equal(t, []State{StateSyncContent, StateEnvironmentCheck, StateBuilding, StateRecovering, StateFailed}, out.States)
}

func TestExecute_NoToolsAvailable(t *testing.T) {
	f := newFixture(t, false)
	fake := procexec.NewFakeRunner().On("gradle --version", procexec.Fail("not found"))

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.Error(t, err)
	assert.Empty(t, out.Attempts)
	assert.Contains(t, err.Error(), "no Gradle installation")
}

func TestExecute_RecoversFreshArtifact(t *testing.T) {
	f := newFixture(t, false)
	fake := procexec.NewFakeRunner().
		// Packaging fails after the APK was already written.
		On("gradle assembleDebug", procexec.FakeResponse{
			Do:     f.writeArtifact,
			Result: procexec.Result{ExitCode: 1, Stderr: "lint failed"},
			Err:    &procexec.ExitError{ExitCode: 1, Output: "lint failed"},
		})

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.NoError(t, err)
	assert.True(t, out.Recovered)
	assert.Equal(t, f.artifact, out.ArtifactPath)
	assert.Contains(t, out.States, StateRecovering)
}

func TestExecute_RecoveryRejectsStaleArtifact(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.writeArtifact(procexec.Command{}))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.artifact, old, old))

	fake := procexec.NewFakeRunner().On("gradle assembleDebug", procexec.Fail("boom"))
	_, err := NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), f.params(gradle.Environment{}))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrStrategiesExhausted))
}

func TestExecute_RecoveryRejectsChangedContent(t *testing.T) {
	f := newFixture(t, false)
	dist := filepath.Join(f.root, "dist")
	manifest, err := content.NewStager().Stage(t.Context(), dist, "Demo", "index.html", nil)
	require.NoError(t, err)

	fake := procexec.NewFakeRunner().On("gradle assembleDebug", procexec.FakeResponse{
		Do: func(c procexec.Command) error {
			if err := f.writeArtifact(c); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dist, "index.html"), []byte("tampered"), 0o600)
		},
		Err: &procexec.ExitError{ExitCode: 1},
	})

	p := f.params(gradle.Environment{})
	p.Manifest = manifest
	_, err = NewExecutor(fake, Toolchain{}, true).Execute(t.Context(), p)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrStrategiesExhausted))
}

func TestExecute_RecoveryDisabled(t *testing.T) {
	f := newFixture(t, false)
	fake := procexec.NewFakeRunner().On("gradle assembleDebug", procexec.FakeResponse{
		Do:  f.writeArtifact,
		Err: &procexec.ExitError{ExitCode: 1},
	})

	_, err := NewExecutor(fake, Toolchain{}, false).Execute(t.Context(), f.params(gradle.Environment{}))
	require.Error(t, err)
}

func TestExecute_CancellationStopsChain(t *testing.T) {
	f := newFixture(t, true)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	fake := procexec.NewFakeRunner().On("gradle assembleDebug", procexec.FakeResponse{
		Do: func(c procexec.Command) error {
			// The artifact exists but must not be used after cancellation.
			_ = f.writeArtifact(c)
			cancel()
			return context.Canceled
		},
	})

	out, err := NewExecutor(fake, Toolchain{}, true).Execute(ctx, f.params(offlineEnv))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
	assert.Len(t, out.Attempts, 1)
	assert.Empty(t, out.ArtifactPath)
	assert.Equal(t, StateFailed, out.States[len(out.States)-1])
}
