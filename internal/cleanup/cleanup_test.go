package cleanup

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
)

func TestRun_RemovesEverything(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "com.demo.app")
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "android", "app"), 0o750))
	upload := filepath.Join(t.TempDir(), "upload-1")
	require.NoError(t, os.WriteFile(upload, []byte("x"), 0o600))

	adv := NewCoordinator().Run(ws, []string{upload, filepath.Join(t.TempDir(), "already-gone"), ""})
	assert.Empty(t, adv)
	assert.NoDirExists(t, ws)
	assert.NoFileExists(t, upload)
}

func TestRun_FailuresAreAdvisories(t *testing.T) {
	c := &Coordinator{
		removeAll: func(string) error { return stderrors.New("device busy") },
		remove:    func(string) error { return stderrors.New("permission denied") },
	}

	adv := c.Run("/tmp/ws", []string{"/tmp/a", "/tmp/b"})
	require.Len(t, adv, 3)
	for _, a := range adv {
		assert.True(t, a.IsAdvisory())
		assert.True(t, a.IsCategory(errors.CategoryCleanup))
	}
	assert.Equal(t, "/tmp/ws", errors.ContextString(adv[0], "path"))
}
