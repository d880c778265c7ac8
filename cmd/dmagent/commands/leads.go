// ABOUTME: CLI commands to inspect leads and record conversions
// ABOUTME: Lists leads as a table or JSON and marks a handle converted
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/dmagent/internal/conversation"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
)

var (
	leadsStatus string
	leadsLimit  int
)

// NewLeadsCmd creates the leads command
func NewLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List leads",
		Long: `List leads oldest first, optionally filtered by status.

Examples:
  dmagent leads
  dmagent leads --status contacted
  dmagent leads --limit 10 --format json`,
		Args: cobra.NoArgs,
		RunE: runLeads,
	}

	cmd.Flags().StringVarP(&leadsStatus, "status", "s", "", "Only leads with this status (new, contacted, rejected, exited, converted)")
	cmd.Flags().IntVarP(&leadsLimit, "limit", "n", 50, "Maximum number of leads to show")

	return cmd
}

func runLeads(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(leadsLimit, "limit"); err != nil {
		return err
	}
	filter := storage.LeadFilter{Limit: leadsLimit}
	if leadsStatus != "" {
		status, err := models.ParseLeadStatus(leadsStatus)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.ListLeads(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing leads: %w", err)
	}

	if wantJSON() {
		if list == nil {
			list = []models.Lead{}
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	if len(list) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No leads found\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "HANDLE\tSTATUS\tSCORE\tNICHE\tADDED\tBIO\n")
	fmt.Fprintf(w, "------\t------\t-----\t-----\t-----\t---\n")
	for _, l := range list {
		fmt.Fprintf(w, "@%s\t%s\t%d\t%s\t%s\t%s\n",
			truncate(l.Handle, 24),
			l.Status,
			l.ConfidenceScore,
			l.Niche,
			formatTime(l.CreatedAt),
			truncate(l.Bio, 40))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d lead(s)\n", len(list))
	}
	return nil
}

// NewConvertCmd creates the convert command
func NewConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <handle>",
		Short: "Mark a lead as converted",
		Long: `Record that a lead became a customer. The conversation stops receiving
automated replies.

Examples:
  dmagent convert cafe_tashkent`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}

	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	handle := models.NormalizeHandle(args[0])
	if err := a.convs.MarkConverted(ctx, handle); err != nil {
		if errors.Is(err, conversation.ErrUnknownLead) {
			return fmt.Errorf("no lead @%s", handle)
		}
		return fmt.Errorf("converting lead: %w", err)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "@%s marked converted\n", handle)
	}
	return nil
}
