package build

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/web2apk/internal/gradle"
)

// Task is the Gradle target producing the debug APK.
const Task = "assembleDebug"

// Tool identifies which Gradle entry point a strategy uses.
type Tool string

const (
	ToolSystem  Tool = "system"
	ToolWrapper Tool = "wrapper"
)

// Strategy is one Gradle invocation variant.
type Strategy struct {
	Tool     Tool
	Command  string // executable to run
	NoDaemon bool
	Offline  bool
}

// Name is a stable identifier for logs, metrics and events,
// e.g. "system-offline" or "wrapper-no-daemon-online".
func (s Strategy) Name() string {
	parts := []string{string(s.Tool)}
	if s.NoDaemon {
		parts = append(parts, "no-daemon")
	}
	if s.Offline {
		parts = append(parts, "offline")
	} else {
		parts = append(parts, "online")
	}
	return strings.Join(parts, "-")
}

// Args returns the Gradle arguments.
func (s Strategy) Args() []string {
	args := []string{Task}
	if s.NoDaemon {
		args = append(args, "--no-daemon")
	}
	if s.Offline {
		args = append(args, "--offline")
	}
	return args
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s %s", s.Command, strings.Join(s.Args(), " "))
}

// Availability records which Gradle entry points the host offers.
type Availability struct {
	System  bool
	Wrapper bool
}

// Plan orders the strategies: system tool before wrapper, and per tool
// default daemon before --no-daemon with offline before online. Offline
// variants are only planned when a local distribution exists.
func Plan(avail Availability, systemCmd, wrapperCmd string, env gradle.Environment) []Strategy {
	var tools []Strategy
	if avail.System {
		tools = append(tools, Strategy{Tool: ToolSystem, Command: systemCmd})
	}
	if avail.Wrapper {
		tools = append(tools, Strategy{Tool: ToolWrapper, Command: wrapperCmd})
	}

	var plan []Strategy
	for _, base := range tools {
		for _, noDaemon := range []bool{false, true} {
			if env.Offline {
				plan = append(plan, Strategy{Tool: base.Tool, Command: base.Command, NoDaemon: noDaemon, Offline: true})
			}
			plan = append(plan, Strategy{Tool: base.Tool, Command: base.Command, NoDaemon: noDaemon})
		}
	}
	return plan
}
