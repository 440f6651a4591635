// Package version carries build metadata injected through ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/web2apk/internal/version.Version=v1.0.0"
package version

import "fmt"

// Version is the release version.
var Version = "unknown"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("web2apk %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
