package errors

import (
	"context"
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the process exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.Category() {
	case CategoryValidation:
		return 2
	case CategoryConfig:
		return 7
	case CategoryAlreadyExists:
		return 9
	case CategoryIcon, CategoryContent:
		return 3
	case CategoryScaffold:
		return 4
	case CategoryBuild, CategoryPublish:
		return 11
	case CategoryCanceled:
		return 130
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for display on stderr. In verbose mode the
// full chain and the captured tool output are included.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if !a.verbose {
		return fmt.Sprintf("Error: %s (use -v for details)", classified.Message())
	}
	msg := "Error: " + classified.Error()
	if out, ok := classified.Context().GetString("output"); ok && out != "" {
		msg += "\n--- tool output ---\n" + out
	}
	return msg
}

// LogError logs the error with category attributes.
func (a *CLIErrorAdapter) LogError(err error) {
	if err == nil {
		return
	}
	if classified, ok := AsClassified(err); ok {
		attrs := []slog.Attr{slog.String("category", string(classified.Category()))}
		for _, key := range []string{"step", "stage", "bucket", "reason"} {
			if v, exists := classified.Context().GetString(key); exists {
				attrs = append(attrs, slog.String(key, v))
			}
		}
		a.logger.LogAttrs(context.Background(), slogLevelFromSeverity(classified.Severity()), classified.Message(), attrs...)
		return
	}
	a.logger.Error("Unclassified error", "error", err)
}
