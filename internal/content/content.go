// Package content stages the uploaded web bundle into the workspace web root.
package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// File pairs a bundle-relative path with the uploaded file holding its bytes.
type File struct {
	RelPath    string
	SourcePath string
}

// Stager copies web bundles into a staging directory.
type Stager struct{}

// NewStager returns a Stager.
func NewStager() *Stager { return &Stager{} }

// Stage materializes files under root. An empty bundle produces a single
// placeholder page named entryPage that shows appName.
func (s *Stager) Stage(ctx context.Context, root, appName, entryPage string, files []File) (*Manifest, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, stagingError("failed to create web root", root, err)
	}

	if len(files) == 0 {
		if err := writePlaceholder(root, appName, entryPage); err != nil {
			return nil, err
		}
		slog.Info("Staged placeholder page", logfields.Path(entryPage), logfields.AppName(appName))
	} else {
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, errors.CanceledError("content staging canceled").WithCause(err).Build()
			}
			if err := copyInto(root, f); err != nil {
				return nil, err
			}
		}
		slog.Info("Staged web content", slog.Int("files", len(files)), logfields.Path(root))
	}

	m, err := Scan(root)
	if err != nil {
		return nil, stagingError("failed to fingerprint staged content", root, err)
	}
	return m, nil
}

// resolve maps a bundle-relative path to a location inside root.
func resolve(root, rel string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(rel, "./"))
	if clean == "" || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("path %q escapes the web root", rel)
	}
	return securejoin.SecureJoin(root, clean)
}

func copyInto(root string, f File) error {
	dst, err := resolve(root, f.RelPath)
	if err != nil {
		return stagingError("rejected bundle path", f.RelPath, err)
	}

	in, err := os.Open(f.SourcePath)
	if err != nil {
		return stagingError("failed to read bundle file", f.RelPath, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return stagingError("failed to create directory", f.RelPath, err)
	}
	// #nosec G304 -- dst is confined to root by resolve
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return stagingError("failed to write bundle file", f.RelPath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return stagingError("failed to write bundle file", f.RelPath, err)
	}
	if err := out.Close(); err != nil {
		return stagingError("failed to write bundle file", f.RelPath, err)
	}
	return nil
}

func stagingError(msg, path string, cause error) error {
	return errors.ContentStagingError(msg).
		WithCause(cause).
		WithContext("path", path).
		Build()
}
