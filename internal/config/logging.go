package config

import (
	"log/slog"

	"git.home.luguber.info/inful/web2apk/internal/foundation/normalization"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

var (
	logLevels = normalization.New("logging.level", map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}, slog.LevelInfo)

	logFormats = normalization.New("logging.format", map[string]LogFormat{
		"text": LogFormatText,
		"json": LogFormatJSON,
	}, LogFormatText)
)

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level { return logLevels.Normalize(s) }

// LogLevel returns the configured level.
func (c *Config) LogLevel() slog.Level { return ParseLogLevel(c.Logging.Level) }

// LogFormat returns the configured handler format.
func (c *Config) LogFormat() LogFormat { return logFormats.Normalize(c.Logging.Format) }
