// retctl - Command-line and terminal UI client for a Retribution DCS server
package main

import (
	"os"

	"golang.org/x/term"

	"github.com/retribution/retctl/internal/cli"
	"github.com/retribution/retctl/internal/version"
)

// Version information, set by ldflags during build.
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	// Bare invocation on a terminal opens the interactive UI
	if isInteractiveDefault(os.Args) {
		os.Args = append(os.Args, "ui")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// isInteractiveDefault reports whether retctl was started with no arguments
// from a terminal.
func isInteractiveDefault(args []string) bool {
	if len(args) != 1 {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
