// Package icon rasterizes a launcher icon into the Android density buckets.
package icon

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// FileName is the launcher icon name inside every bucket.
const FileName = "ic_launcher.png"

// MinSourceSize is the smallest accepted source edge; the largest bucket is 192px.
const MinSourceSize = 192

// Bucket is one Android density directory and its square edge length.
type Bucket struct {
	Name string
	Size int
}

// Buckets lists the launcher densities in ascending order.
var Buckets = []Bucket{
	{Name: "mipmap-mdpi", Size: 48},
	{Name: "mipmap-hdpi", Size: 72},
	{Name: "mipmap-xhdpi", Size: 96},
	{Name: "mipmap-xxhdpi", Size: 144},
	{Name: "mipmap-xxxhdpi", Size: 192},
}

// Result describes the produced icon tree.
type Result struct {
	Dir     string            // resource root; empty when skipped
	Source  string            // the image that was rasterized
	Files   map[string]string // bucket name -> written file
	Skipped bool              // no uploaded icon and no bundled default
}

// Processor produces launcher icons.
type Processor struct {
	// DefaultIcon is used when the request carries no icon.
	DefaultIcon string
}

// NewProcessor returns a processor using defaultIcon as fallback source.
func NewProcessor(defaultIcon string) *Processor {
	return &Processor{DefaultIcon: defaultIcon}
}

// Process rasterizes source (or the default icon) into outDir/<bucket>/ic_launcher.png.
// Nothing is written unless every bucket rendered successfully.
func (p *Processor) Process(ctx context.Context, source, outDir string) (*Result, error) {
	src, ok := p.resolveSource(source)
	if !ok {
		slog.Info("No icon available, keeping framework default icons")
		return &Result{Skipped: true}, nil
	}

	img, err := load(src)
	if err != nil {
		return nil, err
	}

	rendered := make([][]byte, len(Buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range Buckets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := render(img, b.Size)
			if err != nil {
				return errors.IconProcessingError("failed to resize icon").
					WithCause(err).
					WithContext("bucket", b.Name).
					Build()
			}
			rendered[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.CanceledError("icon processing canceled").WithCause(ctxErr).Build()
		}
		return nil, err
	}

	res := &Result{Dir: outDir, Source: src, Files: make(map[string]string, len(Buckets))}
	for i, b := range Buckets {
		dir := filepath.Join(outDir, b.Name)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, writeError(b, err)
		}
		path := filepath.Join(dir, FileName)
		if err := renameio.WriteFile(path, rendered[i], 0o644); err != nil {
			return nil, writeError(b, err)
		}
		res.Files[b.Name] = path
	}

	slog.Info("Generated launcher icons", logfields.Path(outDir), slog.Int("buckets", len(Buckets)))
	return res, nil
}

func (p *Processor) resolveSource(source string) (string, bool) {
	if source != "" {
		return source, true
	}
	if p.DefaultIcon == "" {
		return "", false
	}
	if _, err := os.Stat(p.DefaultIcon); err != nil {
		return "", false
	}
	return p.DefaultIcon, true
}

func load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.IconProcessingError("icon image could not be decoded").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	bounds := img.Bounds()
	if bounds.Dx() < MinSourceSize || bounds.Dy() < MinSourceSize {
		return nil, errors.IconProcessingError(
			fmt.Sprintf("icon must be at least %dx%d pixels, got %dx%d",
				MinSourceSize, MinSourceSize, bounds.Dx(), bounds.Dy())).
			WithContext("path", path).
			Build()
	}
	return img, nil
}

func render(img image.Image, size int) ([]byte, error) {
	if size <= 0 {
		return nil, stderrors.New("invalid target size")
	}
	resized := imaging.Resize(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeError(b Bucket, err error) error {
	return errors.IconProcessingError("failed to write icon").
		WithCause(err).
		WithContext("bucket", b.Name).
		Build()
}
