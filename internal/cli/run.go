package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/leadflow/internal/clock"
	"github.com/roach88/leadflow/internal/config"
	"github.com/roach88/leadflow/internal/dispatch"
	"github.com/roach88/leadflow/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Period     time.Duration
	Workers    int
	RunOnStart bool

	// Clock allows overriding the wall clock (for testing).
	Clock clock.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the automation scheduler",
		Long: `Start the leadflow scheduler.

Opens the SQLite database (creating it if it doesn't exist) and runs an
automation cycle every period until interrupted. Flags override the
LEADFLOW_* environment.

Example:
  leadflow run --db ./crm.db
  leadflow run --db ./crm.db --period 1m --workers 8 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Period, "period", engine.DefaultPeriod, "time between cycles (overrides LEADFLOW_PERIOD)")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "concurrent dispatches per cycle (overrides LEADFLOW_WORKERS)")
	cmd.Flags().BoolVar(&opts.RunOnStart, "run-on-start", true, "run a cycle immediately (overrides LEADFLOW_RUN_ON_START)")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(opts *RunOptions, cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("period") {
		cfg.Period = opts.Period
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("run-on-start") {
		cfg.RunOnStart = opts.RunOnStart
	}
}

// newEngine wires the dispatcher and engine over a session's store.
func newEngine(s *session, clk clock.Clock) *engine.Engine {
	d := dispatch.New(s.store, clk, engine.UUIDv7Generator{}, dispatch.WithLogger(s.logger))
	return engine.New(s.store, d, clk,
		engine.WithWorkers(s.cfg.Workers),
		engine.WithLogger(s.logger))
}

func runScheduler(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, func(cfg *config.Config) {
		applyRunFlags(opts, cmd, cfg)
	})
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

	sched := engine.NewScheduler(newEngine(s, clk), clk,
		engine.WithPeriod(cfg.Period),
		engine.WithRunOnStart(cfg.RunOnStart),
		engine.WithSchedulerLogger(s.logger))

	// Use command's context if available (for testing)
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Info("scheduler starting", "db", cfg.DB, "period", cfg.Period, "workers", cfg.Workers)
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduler started (period %s). Press Ctrl-C to stop.\n", cfg.Period)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "scheduler error", err)
	}

	s.logger.Info("scheduler stopped gracefully")
	return nil
}
