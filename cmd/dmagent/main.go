// ABOUTME: Main entry point for the dmagent CLI
// ABOUTME: Sets build info and executes the cobra root command
package main

import (
	"fmt"
	"os"

	"github.com/harper/dmagent/cmd/dmagent/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
