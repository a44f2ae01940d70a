package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/leadflow/internal/model"
	"github.com/roach88/leadflow/internal/store"
)

// RunLogOptions holds flags for the runlog command.
type RunLogOptions struct {
	*RootOptions
	Rule  string
	Lead  string
	Limit int
}

// NewRunLogCommand creates the runlog command.
func NewRunLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunLogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runlog",
		Short: "Show the automation audit trail",
		Long: `List run-log entries, oldest first. Every entry records one (rule, lead)
pair that was attempted, its action, result and detail.

Examples:
  leadflow runlog --db ./crm.db
  leadflow runlog --db ./crm.db --rule welcome --limit 20
  leadflow runlog --db ./crm.db --lead l-42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only entries for this rule ID")
	cmd.Flags().StringVar(&opts.Lead, "lead", "", "only entries for this lead ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")

	return cmd
}

func runRunLog(opts *RunLogOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	s, err := openSession(cfg, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.store.ListRunLog(cmd.Context(), store.RunLogFilter{
		RuleID: opts.Rule,
		LeadID: opts.Lead,
		Limit:  opts.Limit,
	})
	if err != nil {
		_ = formatter.Error("STORE_READ", err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read run log", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	outputRunLogText(formatter, entries)
	return nil
}

func outputRunLogText(f *OutputFormatter, entries []model.RunLogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No run-log entries.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Format(time.RFC3339),
			e.RuleID,
			e.LeadID,
			string(e.Action),
			string(e.Result),
			e.Detail,
		})
	}
	f.Table([]string{"TIME", "RULE", "LEAD", "ACTION", "RESULT", "DETAIL"}, rows)
}
