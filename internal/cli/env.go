package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/leadflow/internal/config"
	"github.com/roach88/leadflow/internal/logging"
	"github.com/roach88/leadflow/internal/store"
)

// session bundles what every store-backed command needs.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	closers []io.Closer
}

// loadConfig reads configuration, applies global flag overrides and then the
// command's own overrides, and validates the result.
func loadConfig(opts *RootOptions, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// openSession sets up logging on the command's stderr and opens the store.
func openSession(cfg *config.Config, cmd *cobra.Command) (*session, error) {
	logger, logCloser, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}

	logger.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		_ = logCloser.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		closers: []io.Closer{st, logCloser},
	}, nil
}

// Close releases the store, then the log file.
func (s *session) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("error during shutdown", "error", err)
		}
	}
}
