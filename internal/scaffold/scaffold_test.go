package scaffold

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/procexec"
)

// addPlatform mimics `npx cap add android` creating the resource tree.
func addPlatform(cmd procexec.Command) error {
	return os.MkdirAll(filepath.Join(cmd.Dir, "android", "app", "src", "main", "res"), 0o750)
}

func TestScaffold_RunsStepsInOrder(t *testing.T) {
	root := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)

	fake := procexec.NewFakeRunner().On("npx cap add android", procexec.FakeResponse{Do: addPlatform})
	s := New(fake, Toolchain{})

	err = s.Scaffold(t.Context(), Params{Root: root, AppName: "Demo App", PackageName: "com.demo.app", Version: "1.2.3"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"npm install @capacitor/core @capacitor/cli",
		"npm install @capacitor/android",
		"npx cap add android",
	}, fake.CommandLines())
	for _, c := range fake.Calls() {
		assert.Equal(t, root, c.Dir)
	}

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, after)

	var pkg PackageManifest
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &pkg))
	assert.Equal(t, "demo-app", pkg.Name)
	assert.Equal(t, "1.2.3", pkg.Version)
	assert.Equal(t, "ISC", pkg.License)
	assert.Equal(t, "index.js", pkg.Main)

	var capCfg map[string]any
	data, err = os.ReadFile(filepath.Join(root, "capacitor.config.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &capCfg))
	assert.Equal(t, map[string]any{
		"appId":             "com.demo.app",
		"appName":           "Demo App",
		"webDir":            "dist",
		"bundledWebRuntime": false,
	}, capCfg)
}

func TestScaffold_FailureNamesStep(t *testing.T) {
	root := t.TempDir()
	fake := procexec.NewFakeRunner().On("npm install @capacitor/android", procexec.Fail("ERR! 404 Not Found"))

	err := New(fake, Toolchain{}).Scaffold(t.Context(), Params{Root: root, AppName: "Demo", PackageName: "com.demo.app", Version: "1.0.0"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryScaffold))
	assert.Equal(t, string(StepInstallAndroid), errors.ContextString(err, "step"))
	assert.Contains(t, errors.ContextString(err, "output"), "404")
	assert.NotContains(t, fake.CommandLines(), "npx cap add android", "no step runs after a failure")
}

func TestScaffold_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := New(procexec.NewFakeRunner(), Toolchain{}).Scaffold(ctx, Params{Root: t.TempDir(), AppName: "Demo"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
}

func TestScaffold_InstallsIcons(t *testing.T) {
	root := t.TempDir()
	iconDir := filepath.Join(root, "icons", "res")
	for _, bucket := range []string{"mipmap-mdpi", "mipmap-xxxhdpi"} {
		require.NoError(t, os.MkdirAll(filepath.Join(iconDir, bucket), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(iconDir, bucket, "ic_launcher.png"), []byte(bucket), 0o600))
	}

	fake := procexec.NewFakeRunner().On("npx cap add android", procexec.FakeResponse{Do: addPlatform})
	err := New(fake, Toolchain{}).Scaffold(t.Context(), Params{
		Root: root, AppName: "Demo", PackageName: "com.demo.app", Version: "1.0.0", IconDir: iconDir,
	})
	require.NoError(t, err)

	res := filepath.Join(root, "android", "app", "src", "main", "res")
	for _, name := range []string{"ic_launcher.png", "ic_launcher_round.png"} {
		data, err := os.ReadFile(filepath.Join(res, "mipmap-xxxhdpi", name))
		require.NoError(t, err)
		assert.Equal(t, "mipmap-xxxhdpi", string(data))
	}
	assert.NoDirExists(t, filepath.Join(res, "mipmap-hdpi"))
}

func TestScaffold_CustomToolchain(t *testing.T) {
	fake := procexec.NewFakeRunner()
	err := New(fake, Toolchain{NPM: "/opt/node/bin/npm", NPX: "/opt/node/bin/npx"}).
		Scaffold(t.Context(), Params{Root: t.TempDir(), AppName: "Demo", PackageName: "com.demo.app", Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/node/bin/npx cap add android", fake.CommandLines()[2])
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Demo App":        "demo-app",
		"  Café   Crème ": "cafe-creme",
		"My/App!":         "my-app",
		"日本":              "app",
		"":                "app",
		"   ":             "app",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}
