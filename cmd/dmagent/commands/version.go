// ABOUTME: Build stamp injected by main through ldflags and the version command
// ABOUTME: The one-line form also labels the MCP server; --json prints it for scripts
package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildStamp identifies the running binary
type BuildStamp struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"built"`
	Go      string `json:"go"`
}

var build = BuildStamp{Version: "dev", Commit: "none", Date: "unknown", Go: runtime.Version()}

// SetVersion records the ldflags values; main calls it before Execute
func SetVersion(version, commit, date string) {
	build.Version, build.Commit, build.Date = version, commit, date
}

func (b BuildStamp) String() string {
	return fmt.Sprintf("dmagent %s (%s, built %s, %s %s/%s)",
		b.Version, b.Commit, b.Date, b.Go, runtime.GOOS, runtime.GOARCH)
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build stamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(build)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stamp as JSON")
	return cmd
}
