package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
)

func writeAPK(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app-debug.apk")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func fixedClock() time.Time { return time.UnixMilli(1700000000123) }

func TestPublish_CopiesWithMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "builds")
	src := writeAPK(t, "apk-bytes")

	a, err := NewPublisher(dir, WithClock(fixedClock)).Publish(t.Context(), src, "com.demo.app")
	require.NoError(t, err)

	assert.Equal(t, "com.demo.app-1700000000123.apk", a.FileName)
	assert.Equal(t, filepath.Join(dir, a.FileName), a.Path)
	assert.Equal(t, "/downloads/com.demo.app-1700000000123.apk", a.DownloadURL)
	assert.Equal(t, int64(len("apk-bytes")), a.Size)
	sum := sha256.Sum256([]byte("apk-bytes"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a.SHA256)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "apk-bytes", string(data))
	assert.FileExists(t, src, "source is copied, not moved")
}

func TestPublish_NamesAreUnique(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, WithClock(fixedClock))

	first, err := p.Publish(t.Context(), writeAPK(t, "one"), "com.demo.app")
	require.NoError(t, err)
	second, err := p.Publish(t.Context(), writeAPK(t, "two"), "com.demo.app")
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, "com.demo.app-1700000000123-1.apk", second.FileName)
	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestPublish_VanishedSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NewPublisher(dir).Publish(t.Context(), filepath.Join(t.TempDir(), "gone.apk"), "com.demo.app")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryPublish))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPublish_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	dir := t.TempDir()
	_, err := NewPublisher(dir).Publish(ctx, writeAPK(t, "x"), "com.demo.app")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir, WithClock(fixedClock))
	a, err := p.Publish(t.Context(), writeAPK(t, "x"), "com.demo.app")
	require.NoError(t, err)

	path, err := p.Resolve(a.FileName)
	require.NoError(t, err)
	assert.Equal(t, a.Path, path)

	for _, bad := range []string{"", "../etc/passwd", "sub/x.apk", "missing.apk", "notes.txt", ".."} {
		_, err := p.Resolve(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.HasCategory(err, errors.CategoryNotFound), bad)
	}
}

type fakeMirror struct {
	err      error
	uploaded []string
}

func (f *fakeMirror) Upload(_ context.Context, a *Artifact) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, a.FileName)
	return "apks/" + a.FileName, nil
}

func TestMirror(t *testing.T) {
	m := &fakeMirror{}
	p := NewPublisher(t.TempDir(), WithMirror(m))
	require.True(t, p.HasMirror())

	a, err := p.Publish(t.Context(), writeAPK(t, "x"), "com.demo.app")
	require.NoError(t, err)
	require.NoError(t, p.Mirror(t.Context(), a))
	assert.Equal(t, "apks/"+a.FileName, a.ObjectKey)
	assert.Equal(t, []string{a.FileName}, m.uploaded)
}

func TestMirror_FailureIsAdvisory(t *testing.T) {
	p := NewPublisher(t.TempDir(), WithMirror(&fakeMirror{err: stderrors.New("connection refused")}))
	a, err := p.Publish(t.Context(), writeAPK(t, "x"), "com.demo.app")
	require.NoError(t, err)

	err = p.Mirror(t.Context(), a)
	require.Error(t, err)
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, classified.IsAdvisory())
	assert.Empty(t, a.ObjectKey)
}

func TestMirror_NoneConfigured(t *testing.T) {
	p := NewPublisher(t.TempDir())
	assert.False(t, p.HasMirror())
	assert.NoError(t, p.Mirror(t.Context(), &Artifact{}))
}

func TestMinioConfig_Validate(t *testing.T) {
	valid := MinioConfig{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s", Bucket: "apks"}
	require.NoError(t, valid.Validate())

	withScheme := valid
	withScheme.Endpoint = "http://minio:9000"
	require.Error(t, withScheme.Validate())

	noKeys := valid
	noKeys.SecretKey = ""
	require.Error(t, noKeys.Validate())

	_, err := NewMinioMirror(MinioConfig{})
	require.Error(t, err)

	m, err := NewMinioMirror(valid)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
