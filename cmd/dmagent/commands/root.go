// ABOUTME: Root cobra command with global flags and logger setup
// ABOUTME: Registers every subcommand of the dmagent CLI
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string

	logger = zap.NewNop()
)

const banner = `
██████╗ ███╗   ███╗ █████╗  ██████╗ ███████╗███╗   ██╗████████╗
██╔══██╗████╗ ████║██╔══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝
██║  ██║██╔████╔██║███████║██║  ███╗█████╗  ██╔██╗ ██║   ██║
██║  ██║██║╚██╔╝██║██╔══██║██║   ██║██╔══╝  ██║╚██╗██║   ██║
██████╔╝██║ ╚═╝ ██║██║  ██║╚██████╔╝███████╗██║ ╚████║   ██║
╚═════╝ ╚═╝     ╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝`

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dmagent",
		Short: "Direct-message outreach agent with warmup limits and a kill-switch",
		Long: banner + `

dmagent opens conversations with business accounts, qualifies them over
direct messages and exits politely on rejection. Daily volume follows the
account's warmup age, and repeated rejections pause all sending.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(logging.Options{Verbose: verbose, Quiet: quiet})
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only warnings and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewRunCmd(),
		NewAddCmd(),
		NewSetDateCmd(),
		NewScrapeFollowersCmd(),
		NewDiscoverCmd(),
		NewDiscoverAllCmd(),
		NewStatusCmd(),
		NewLeadsCmd(),
		NewConvertCmd(),
		NewResumeCmd(),
		NewSessionLoginCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the CLI
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func wantJSON() bool {
	return outputFormat == "json"
}
