package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/web2apk/cmd/web2apk/commands"
	"git.home.luguber.info/inful/web2apk/internal/foundation/errors"
	"git.home.luguber.info/inful/web2apk/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	ctx := kong.Parse(cli,
		kong.Name("web2apk"),
		kong.Description("Package a static web bundle as an Android APK."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	if err := ctx.Run(global, cli); err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.LogError(err)
		_, _ = os.Stderr.WriteString(adapter.FormatError(err) + "\n")
		os.Exit(adapter.ExitCodeFor(err))
	}
}
