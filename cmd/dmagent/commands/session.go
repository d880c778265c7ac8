// ABOUTME: session-login command captures a platform session in a real browser
// ABOUTME: The captured cookies are stored for the bridge to restore on login
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/platform/browser"
)

var browserBin string

// NewSessionLoginCmd creates the session-login command
func NewSessionLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session-login",
		Short: "Log in through a browser and store the session",
		Long: `Open a visible browser on the platform login page and wait for the
operator to sign in, including any challenge or two-factor step. The
session cookies are saved to the database and reused by later runs
instead of a password login.

Examples:
  dmagent session-login
  dmagent session-login --browser /usr/bin/chromium`,
		Args: cobra.NoArgs,
		RunE: runSessionLogin,
	}

	cmd.Flags().StringVar(&browserBin, "browser", "", "Browser binary (default: find or download one)")

	return cmd
}

func runSessionLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Log in at %s in the browser window...\n", browser.LoginURL)
	}
	sess, err := browser.Capture(ctx, browser.Options{Bin: browserBin}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("capturing session: %w", err)
	}
	encoded, err := sess.Encode()
	if err != nil {
		return err
	}
	if err := a.store.SavePlatformSession(ctx, encoded); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	logger.Info("platform session stored", zap.String("user_id", sess.UserID))
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Session saved\n")
	}
	return nil
}
