// Package publish copies built APKs into the long-lived builds directory and
// resolves download names back to files.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// DownloadPrefix is the public URL namespace for published APKs.
const DownloadPrefix = "/downloads/"

// Artifact is a published APK.
type Artifact struct {
	Path        string
	FileName    string
	Size        int64
	SHA256      string
	DownloadURL string
	ObjectKey   string // set once mirrored
}

// ObjectMirror uploads published artifacts to external storage.
type ObjectMirror interface {
	Upload(ctx context.Context, a *Artifact) (key string, err error)
}

// Publisher owns the builds directory.
type Publisher struct {
	dir    string
	mirror ObjectMirror
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMirror uploads every published artifact through m.
func WithMirror(m ObjectMirror) Option {
	return func(p *Publisher) { p.mirror = m }
}

// WithClock overrides the timestamp source used for file names.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// NewPublisher returns a publisher writing into dir.
func NewPublisher(dir string, opts ...Option) *Publisher {
	p := &Publisher{dir: dir, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Dir returns the builds directory.
func (p *Publisher) Dir() string { return p.dir }

// HasMirror reports whether an object mirror is configured.
func (p *Publisher) HasMirror() bool { return p.mirror != nil }

// Publish copies src to <dir>/<pkg>-<unix-millis>.apk. The destination only
// becomes visible once fully written.
func (p *Publisher) Publish(ctx context.Context, src, pkg string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.CanceledError("publish canceled").WithCause(err).Build()
	}

	in, err := os.Open(src) // #nosec G304 -- artifact path inside the workspace
	if err != nil {
		return nil, errors.PublishError("build artifact disappeared before it could be published").
			WithCause(err).
			WithContext("path", src).
			Build()
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return nil, errors.PublishError("failed to create builds directory").WithCause(err).Build()
	}

	dst := p.uniquePath(pkg)
	pf, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, errors.PublishError("failed to stage published artifact").WithCause(err).Build()
	}
	defer func() { _ = pf.Cleanup() }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(pf, h), in)
	if err != nil {
		return nil, errors.PublishError("failed to copy build artifact").
			WithCause(err).
			WithContext("path", src).
			Build()
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return nil, errors.PublishError("failed to publish build artifact").WithCause(err).Build()
	}

	name := filepath.Base(dst)
	a := &Artifact{
		Path:        dst,
		FileName:    name,
		Size:        size,
		SHA256:      hex.EncodeToString(h.Sum(nil)),
		DownloadURL: DownloadPrefix + name,
	}
	slog.Info("Published artifact",
		logfields.Package(pkg),
		logfields.Path(dst),
		slog.Int64("size", size))
	return a, nil
}

// Mirror uploads a to the configured object store. Callers treat a
// failure as advisory.
func (p *Publisher) Mirror(ctx context.Context, a *Artifact) error {
	if p.mirror == nil {
		return nil
	}
	key, err := p.mirror.Upload(ctx, a)
	if err != nil {
		return errors.NewError(errors.CategoryNetwork, "failed to mirror artifact to object storage").
			WithCause(err).
			Warning().
			WithContext("path", a.FileName).
			Build()
	}
	a.ObjectKey = key
	return nil
}

// uniquePath picks <pkg>-<millis>.apk, adding a numeric suffix on collision.
func (p *Publisher) uniquePath(pkg string) string {
	base := fmt.Sprintf("%s-%d", pkg, p.now().UnixMilli())
	candidate := filepath.Join(p.dir, base+".apk")
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); stderrors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = filepath.Join(p.dir, fmt.Sprintf("%s-%d.apk", base, i))
	}
}

// Resolve maps a download file name to its path in the builds directory.
func (p *Publisher) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || !filepath.IsLocal(filename) ||
		!strings.HasSuffix(filename, ".apk") {
		return "", errors.NotFoundError("file not found").WithContext("path", filename).Build()
	}
	path := filepath.Join(p.dir, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", errors.NotFoundError("file not found").WithContext("path", filename).Build()
	}
	return path, nil
}
