// ABOUTME: CLI commands that bring leads into the database
// ABOUTME: add, scrape-followers, discover and discover-all share result printing
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/dmagent/internal/leads"
)

var (
	addFile         string
	scrapeAmount    int
	discoverAmount  int
	discoverPerSeed int
)

// NewAddCmd creates the add command
func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [handles...]",
		Short: "Scrape and add specific handles as leads",
		Long: `Scrape each profile, detect its niche and store it as a new lead.

Handles already in the database are skipped without scraping. A file
holds one handle per line; blank lines and # comments are ignored and
only the first CSV column is read.

Examples:
  dmagent add cafe_tashkent @shop.uz
  dmagent add --file leads.csv
  dmagent add --file - < handles.txt`,
		RunE: runAdd,
	}

	cmd.Flags().StringVarP(&addFile, "file", "f", "", "Read handles from a file (- for stdin)")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	handles := append([]string(nil), args...)
	if addFile != "" {
		fromFile, err := readHandleFile(cmd.InOrStdin(), addFile)
		if err != nil {
			return err
		}
		handles = append(handles, fromFile...)
	}
	if len(handles) == 0 {
		return fmt.Errorf("no handles given: pass them as arguments or with --file")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, needGenerator|needPlatform)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.login(ctx); err != nil {
		return err
	}

	res, err := a.intake().AddHandles(ctx, handles)
	if perr := printResult(cmd.OutOrStdout(), res); perr != nil {
		return perr
	}
	return err
}

// NewScrapeFollowersCmd creates the scrape-followers command
func NewScrapeFollowersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape-followers <source>",
		Short: "Add business accounts among a source's followers and likers",
		Long: `Collect followers and recent post likers of a source account and add
the business profiles among them as leads.

Examples:
  dmagent scrape-followers competitor_shop
  dmagent scrape-followers competitor_shop --amount 100`,
		Args: cobra.ExactArgs(1),
		RunE: runScrapeFollowers,
	}

	cmd.Flags().IntVarP(&scrapeAmount, "amount", "n", 50, "Number of accounts to collect")

	return cmd
}

func runScrapeFollowers(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(scrapeAmount, "amount"); err != nil {
		return err
	}
	return withIntake(cmd, func(in *leads.Intake) (leads.Result, error) {
		return in.ScrapeFollowers(cmd.Context(), args[0], scrapeAmount)
	})
}

// NewDiscoverCmd creates the discover command
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [query]",
		Short: "Find business accounts through suggested-account expansion",
		Long: `Expand from seed accounts through the platform's suggested accounts.

A query without spaces is tried as an extra seed handle.

Examples:
  dmagent discover
  dmagent discover tashkent_coffee --amount 30`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDiscover,
	}

	cmd.Flags().IntVarP(&discoverAmount, "amount", "n", 50, "Number of accounts to analyze")

	return cmd
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(discoverAmount, "amount"); err != nil {
		return err
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	return withIntake(cmd, func(in *leads.Intake) (leads.Result, error) {
		return in.Discover(cmd.Context(), query, discoverAmount)
	})
}

// NewDiscoverAllCmd creates the discover-all command
func NewDiscoverAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover-all",
		Short: "Scrape the followers of every known influencer account",
		Long: `Run follower intake against each built-in influencer account in turn,
pausing between sources.

Examples:
  dmagent discover-all
  dmagent discover-all --per-source 10`,
		Args: cobra.NoArgs,
		RunE: runDiscoverAll,
	}

	cmd.Flags().IntVar(&discoverPerSeed, "per-source", 20, "Accounts to collect per source")

	return cmd
}

func runDiscoverAll(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(discoverPerSeed, "per-source"); err != nil {
		return err
	}
	return withIntake(cmd, func(in *leads.Intake) (leads.Result, error) {
		return in.DiscoverAll(cmd.Context(), discoverPerSeed)
	})
}

func withIntake(cmd *cobra.Command, fn func(*leads.Intake) (leads.Result, error)) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, needGenerator|needPlatform)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.login(ctx); err != nil {
		return err
	}

	res, err := fn(a.intake())
	if perr := printResult(cmd.OutOrStdout(), res); perr != nil {
		return perr
	}
	return err
}

func readHandleFile(stdin io.Reader, path string) ([]string, error) {
	if path == "-" {
		return leads.ReadHandles(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening handle file: %w", err)
	}
	defer f.Close()
	return leads.ReadHandles(f)
}

func printResult(w io.Writer, res leads.Result) error {
	if wantJSON() {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
		return nil
	}

	if !quiet {
		for _, h := range res.Added {
			fmt.Fprintf(w, "+ @%s\n", h)
		}
		if len(res.Failed) > 0 {
			fmt.Fprintf(w, "failed: %s\n", strings.Join(res.Failed, ", "))
		}
	}
	fmt.Fprintf(w, "%s\n", res)
	return nil
}
