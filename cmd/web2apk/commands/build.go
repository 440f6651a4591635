package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/web2apk/internal/gradle"
	"git.home.luguber.info/inful/web2apk/internal/notify"
	"git.home.luguber.info/inful/web2apk/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Dir         string `arg:"" optional:"" type:"existingdir" help:"Directory holding the web bundle (omit for a placeholder page)"`
	Name        string `short:"n" name:"name" required:"" help:"Application display name"`
	Package     string `short:"p" name:"package" required:"" help:"Android application id, e.g. com.example.app"`
	AppVersion  string `name:"app-version" default:"1.0.0" help:"Version name"`
	VersionCode int    `name:"version-code" default:"1" help:"Integer version code"`
	Entry       string `name:"entry" default:"index.html" help:"Entry page inside the bundle"`
	Icon        string `name:"icon" type:"existingfile" help:"Source icon (PNG or JPEG, at least 192px)"`
	JSON        bool   `name:"json" help:"Print the result as JSON"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadedConfig()
	if err != nil {
		return err
	}
	files, err := collectWebFiles(b.Dir)
	if err != nil {
		return err
	}
	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []pipeline.Option
	lg, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	if lg != nil {
		defer lg.Close()
		opts = append(opts, pipeline.WithObserver(pipeline.EventObserver{Emitter: lg.emitter}))
	}

	p := newPipeline(cfg, gradle.NewDetector(cfg.Paths.GradleDistribution), pub, opts...)
	res, err := p.Run(ctx, pipeline.Request{
		AppName:     b.Name,
		PackageName: b.Package,
		Version:     b.AppVersion,
		VersionCode: b.VersionCode,
		EntryPage:   b.Entry,
		IconPath:    b.Icon,
		WebFiles:    files,
	})
	if err != nil {
		return err
	}

	if b.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(notify.MessageFor(res, nil))
	}
	fmt.Printf("APK written to %s (%d bytes, sha256 %s)\n", res.Artifact.Path, res.Artifact.Size, res.Artifact.SHA256)
	if res.Report != nil && res.Report.Recovered {
		fmt.Println("Note: every build strategy failed; a fresh artifact from this run was recovered")
	}
	for _, w := range res.Warnings() {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
