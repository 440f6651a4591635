package workspace

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// ErrWorkspaceBusy is the cause of the error returned when a package id is
// already owned by an active run.
var ErrWorkspaceBusy = stderrors.New("workspace busy")

// Registry tracks which package ids currently own a workspace.
type Registry struct {
	baseDir string

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRegistry creates a registry rooted at baseDir.
func NewRegistry(baseDir string) *Registry {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "web2apk")
	}
	return &Registry{
		baseDir: baseDir,
		active:  make(map[string]struct{}),
	}
}

// BaseDir returns the directory that holds all workspaces.
func (r *Registry) BaseDir() string { return r.baseDir }

// Acquire reserves the workspace for pkg and creates a clean directory for it.
func (r *Registry) Acquire(pkg string) (*Workspace, error) {
	if pkg == "" || pkg != filepath.Base(pkg) || pkg == "." || pkg == ".." {
		return nil, errors.ValidationError("invalid package id for workspace").
			WithContext("package", pkg).
			Build()
	}

	r.mu.Lock()
	if _, busy := r.active[pkg]; busy {
		r.mu.Unlock()
		return nil, errors.AlreadyExistsError("a build for this package is already running").
			WithCause(ErrWorkspaceBusy).
			WithContext("package", pkg).
			Build()
	}
	r.active[pkg] = struct{}{}
	r.mu.Unlock()

	root := filepath.Join(r.baseDir, pkg)
	if err := prepare(root); err != nil {
		r.release(pkg)
		return nil, errors.FileSystemError("failed to prepare workspace").
			WithCause(err).
			WithContext("path", root).
			Build()
	}

	slog.Debug("Acquired workspace", logfields.Package(pkg), logfields.Path(root))
	return &Workspace{Package: pkg, Root: root, registry: r}, nil
}

// Busy reports whether pkg currently owns a workspace.
func (r *Registry) Busy(pkg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[pkg]
	return ok
}

func (r *Registry) release(pkg string) {
	r.mu.Lock()
	delete(r.active, pkg)
	r.mu.Unlock()
}

// prepare wipes any leftover tree and recreates the workspace root.
func prepare(root string) error {
	if _, err := os.Stat(root); err == nil {
		slog.Warn("Removing stale workspace", logfields.Path(root))
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("remove stale workspace: %w", err)
		}
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

// Workspace is the directory exclusively owned by one conversion run.
type Workspace struct {
	Package string
	Root    string

	registry *Registry
	once     sync.Once
}

// IconDir is where rasterized launcher icons are written.
func (w *Workspace) IconDir() string { return filepath.Join(w.Root, "icons", "res") }

// ContentDir holds the staged web content.
func (w *Workspace) ContentDir() string { return filepath.Join(w.Root, "dist") }

// AndroidDir is the generated native project.
func (w *Workspace) AndroidDir() string { return filepath.Join(w.Root, "android") }

// Release frees the package id. It does not remove the directory; that is
// the cleanup stage's job. Calling Release more than once is safe.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if w.registry != nil {
			w.registry.release(w.Package)
		}
	})
}
