// ABOUTME: CLI commands that read and adjust the bot-wide state
// ABOUTME: status, set-date and resume need only the database
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/ratelimit"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's budget, kill-switch state and lead funnel",
		Long: `Show the number of messages sent today against the warmup limit,
whether the kill-switch is holding sending, and lead counts per status.

Examples:
  dmagent status
  dmagent status --format json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}

	return cmd
}

type statusReport struct {
	Budget ratelimit.Status `json:"budget"`
	Leads  map[string]int   `json:"leads"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.limiter.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading bot state: %w", err)
	}
	counts, err := a.store.CountLeadsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("counting leads: %w", err)
	}

	report := statusReport{Budget: status, Leads: make(map[string]int, len(counts))}
	for _, s := range models.LeadStatuses() {
		report.Leads[s.String()] = counts[s]
	}
	return printStatus(cmd.OutOrStdout(), report)
}

func printStatus(w io.Writer, r statusReport) error {
	if wantJSON() {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
		return nil
	}

	fmt.Fprintf(w, "Sent today:  %d / %d\n", r.Budget.SentToday, r.Budget.Limit)
	fmt.Fprintf(w, "Account age: %d day(s)\n", r.Budget.AccountAgeDays)
	fmt.Fprintf(w, "Rejections:  %d in a row\n", r.Budget.Rejections)
	if r.Budget.Paused && r.Budget.PausedUntil != nil {
		fmt.Fprintf(w, "Kill-switch: paused until %s\n", r.Budget.PausedUntil.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintf(w, "Kill-switch: off\n")
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STATUS\tLEADS\n")
	fmt.Fprintf(tw, "------\t-----\n")
	for _, s := range models.LeadStatuses() {
		fmt.Fprintf(tw, "%s\t%d\n", s, r.Leads[s.String()])
	}
	return tw.Flush()
}

// NewSetDateCmd creates the set-date command
func NewSetDateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-date <YYYY-MM-DD>",
		Short: "Set the bot account's creation date for warmup limits",
		Long: `Record when the sending account was created. The daily message limit
grows with the account's age; without a date the account counts as one
day old.

Examples:
  dmagent set-date 2026-09-01`,
		Args: cobra.ExactArgs(1),
		RunE: runSetDate,
	}

	return cmd
}

func runSetDate(cmd *cobra.Command, args []string) error {
	day, err := time.Parse(models.DateLayout, args[0])
	if err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SetAccountCreatedDate(ctx, models.DateOf(day)); err != nil {
		return fmt.Errorf("saving account date: %w", err)
	}
	status, err := a.limiter.Status(ctx)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Account created %s: %d day(s) old, daily limit %d\n",
			models.DateOf(day), status.AccountAgeDays, status.Limit)
	}
	return nil
}

// NewResumeCmd creates the resume command
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Clear the kill-switch pause",
		Long: `Lift a kill-switch pause before it expires. Sending resumes on the
next cycle of a running loop.

Examples:
  dmagent resume`,
		Args: cobra.NoArgs,
		RunE: runResume,
	}

	return cmd
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.limiter.Resume(ctx); err != nil {
		return fmt.Errorf("clearing pause: %w", err)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Kill-switch cleared\n")
	}
	return nil
}
