package commands

import (
	"fmt"

	"git.home.luguber.info/inful/web2apk/internal/version"
)

// VersionCmd prints build metadata.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println(version.String())
	return nil
}
