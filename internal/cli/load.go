package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/leadflow/internal/clock"
	"github.com/roach88/leadflow/internal/ruleset"
)

// LoadSummary reports what a load wrote.
type LoadSummary struct {
	Dir   string `json:"dir"`
	Files int    `json:"files"`
	Users int    `json:"users"`
	Rules int    `json:"rules"`
	Leads int    `json:"leads"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <ruleset-dir>",
		Short: "Load CUE rules, users and leads into the database",
		Long: `Compile the CUE package in a directory and upsert its users, rules and
leads into the database. Nothing is written if any definition fails to compile.

Example:
  leadflow load --db ./crm.db ./rules`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runLoad(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, errs := ruleset.LoadDir(dir, ruleset.LoadModeFailFast)
	if len(errs) > 0 {
		code := ruleset.ErrCodeGeneric
		var loadErr *ruleset.LoadError
		if errors.As(errs[0], &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, errs[0].Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load ruleset", errs[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	s, err := openSession(cfg, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := ruleset.Apply(cmd.Context(), s.store, res, clock.Real{}.Now()); err != nil {
		_ = formatter.Error("STORE_WRITE", err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to write ruleset", err)
	}

	summary := LoadSummary{
		Dir:   dir,
		Files: res.FileCount,
		Users: len(res.Users),
		Rules: len(res.Rules),
		Leads: len(res.Leads),
	}
	s.logger.Info("ruleset loaded", "dir", dir, "users", summary.Users, "rules", summary.Rules, "leads", summary.Leads)

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(formatter.Writer, "✓ Loaded %d user(s), %d rule(s), %d lead(s) from %s\n",
		summary.Users, summary.Rules, summary.Leads, dir)
	return nil
}
