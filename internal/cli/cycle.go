package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/leadflow/internal/clock"
	"github.com/roach88/leadflow/internal/engine"
)

// CycleOptions holds flags for the cycle command.
type CycleOptions struct {
	*RootOptions

	// Clock allows overriding the wall clock (for testing).
	Clock clock.Clock
}

// NewCycleCommand creates the cycle command.
func NewCycleCommand(rootOpts *RootOptions) *cobra.Command {
	return newCycleCommand(&CycleOptions{RootOptions: rootOpts})
}

func newCycleCommand(opts *CycleOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single automation cycle",
		Long: `Run exactly one automation cycle against the database and print its report.

Useful from cron or for checking a ruleset before starting the scheduler.
Pairs that already ran are skipped, so repeating the command is safe.

Exit codes:
  0 - Cycle completed (per-pair failures are counted in the report)
  2 - Command error (bad config, unreadable database)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(opts, cmd)
		},
	}

	return cmd
}

func runCycle(opts *CycleOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	s, err := openSession(cfg, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	report, err := newEngine(s, clk).RunCycle(cmd.Context())
	if err != nil {
		_ = formatter.Error(runtimeCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "cycle failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	return outputCycleText(formatter, report)
}

func outputCycleText(f *OutputFormatter, r engine.CycleReport) error {
	fmt.Fprintf(f.Writer, "Cycle at %s (%s)\n", r.StartedAt.Format(time.RFC3339), r.Duration)
	fmt.Fprintf(f.Writer, "  rules:         %d\n", r.Rules)
	fmt.Fprintf(f.Writer, "  leads:         %d\n", r.Leads)
	fmt.Fprintf(f.Writer, "  matched:       %d\n", r.Matched)
	fmt.Fprintf(f.Writer, "  performed:     %d\n", r.Performed)
	fmt.Fprintf(f.Writer, "  skipped:       %d\n", r.Skipped)
	fmt.Fprintf(f.Writer, "  failed:        %d\n", r.Failed)
	fmt.Fprintf(f.Writer, "  config errors: %d\n", r.ConfigErrors)
	return nil
}

// runtimeCode returns the engine error code of err, or "CYCLE" when err is
// not a RuntimeError.
func runtimeCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "CYCLE"
}
