// Package commands implements the web2apk subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/web2apk/internal/config"
)

// Global carries state shared by subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"web2apk.yaml" env:"WEB2APK_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd   `cmd:"" help:"Convert a local web directory into an APK"`
	Serve      ServeCmd   `cmd:"" help:"Run the HTTP conversion service"`
	Init       InitCmd    `cmd:"" help:"Write an example configuration file"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print version information"`

	cfg    *config.Config
	cfgErr error
}

// AfterApply loads the configuration and sets up logging once flags are parsed.
func (c *CLI) AfterApply(g *Global) error {
	c.cfg, c.cfgErr = config.Load(c.Config)

	level, format := slog.LevelInfo, config.LogFormatText
	if c.cfg != nil {
		level, format = c.cfg.LogLevel(), c.cfg.LogFormat()
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = newLogger(level, format)
	slog.SetDefault(g.Logger)
	return nil
}

// LoadedConfig returns the configuration parsed in AfterApply.
func (c *CLI) LoadedConfig() (*config.Config, error) {
	if c.cfgErr != nil {
		return nil, c.cfgErr
	}
	if c.cfg == nil {
		return config.Default(), nil
	}
	return c.cfg, nil
}

func newLogger(level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
