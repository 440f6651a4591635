// Package cleanup removes per-run temporaries. Removal failures are
// reported as advisories and never change a run's outcome.
package cleanup

import (
	stderrors "errors"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/logfields"
)

// remover is swapped in tests to simulate failures.
type remover func(path string) error

// Coordinator removes workspaces and uploaded files.
type Coordinator struct {
	removeAll remover
	remove    remover
}

// NewCoordinator returns a coordinator backed by the filesystem.
func NewCoordinator() *Coordinator {
	return &Coordinator{removeAll: os.RemoveAll, remove: os.Remove}
}

// Run removes workspace (recursively) and every uploaded file. Missing paths
// are not failures.
func (c *Coordinator) Run(workspace string, uploads []string) []*errors.ClassifiedError {
	var advisories []*errors.ClassifiedError

	if workspace != "" {
		if err := c.removeAll(workspace); err != nil {
			advisories = append(advisories, c.advise("failed to remove workspace", workspace, err))
		} else {
			slog.Debug("Removed workspace", logfields.Path(workspace))
		}
	}

	for _, f := range uploads {
		if f == "" {
			continue
		}
		if err := c.remove(f); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			advisories = append(advisories, c.advise("failed to remove uploaded file", f, err))
		}
	}
	return advisories
}

func (c *Coordinator) advise(msg, path string, err error) *errors.ClassifiedError {
	slog.Warn("Cleanup failed", logfields.Path(path), logfields.Error(err))
	return errors.CleanupError(msg).
		WithCause(err).
		WithContext("path", path).
		Build()
}
