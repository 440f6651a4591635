package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/web2apk/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory for the generated web2apk.yaml"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if i.Output != "" {
		return RunInit(filepath.Join(i.Output, "web2apk.yaml"), i.Force)
	}
	return RunInit(root.Config, i.Force)
}

// RunInit writes an example configuration to configPath.
func RunInit(configPath string, force bool) error {
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Println("initialized successfully")
	return nil
}
