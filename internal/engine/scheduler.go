package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/leadflow/internal/clock"
)

// DefaultPeriod is the default time between cycles.
const DefaultPeriod = 5 * time.Minute

// State is the scheduler's externally observable state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// CycleRunner runs one automation pass. Implemented by *Engine.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// preflighter is implemented by runners that can check their rules before
// the first cycle. *Engine implements it.
type preflighter interface {
	Preflight(ctx context.Context, period time.Duration) ([]string, error)
}

// Scheduler fires automation cycles periodically.
//
// Thread-safety: Run must be called from exactly one goroutine. State is
// safe from any goroutine.
type Scheduler struct {
	runner     CycleRunner
	clock      clock.Clock
	period     time.Duration
	runOnStart bool
	logger     *slog.Logger
	onCycle    func(CycleReport, error)

	running atomic.Bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPeriod sets the time between cycles. Non-positive values keep the
// default (DefaultPeriod).
func WithPeriod(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

// WithRunOnStart controls whether a cycle fires immediately when Run starts.
// Default: true.
func WithRunOnStart(v bool) SchedulerOption {
	return func(s *Scheduler) {
		s.runOnStart = v
	}
}

// WithSchedulerLogger sets the logger. Defaults to slog.Default().
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithCycleHook registers fn to be called after every cycle attempt,
// including failed and panicked ones. fn runs on the scheduler goroutine.
func WithCycleHook(fn func(CycleReport, error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onCycle = fn
	}
}

// NewScheduler creates a Scheduler for runner.
func NewScheduler(runner CycleRunner, c clock.Clock, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:     runner,
		clock:      c,
		period:     DefaultPeriod,
		runOnStart: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Period returns the configured time between cycles.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// State reports whether a cycle is currently running.
func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// Run blocks until ctx is cancelled, firing one cycle per period (plus one
// immediately when run-on-start is enabled).
//
// Ticks that arrive while a cycle is running are dropped, not queued. Cycle
// errors and panics are logged and never stop the loop. Returns nil when ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if pf, ok := s.runner.(preflighter); ok {
		if _, err := pf.Preflight(ctx, s.period); err != nil {
			s.logger.Warn("rule preflight failed", "error", err)
		}
	}

	ticker := s.clock.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("scheduler starting",
		"period", s.period.String(),
		"run_on_start", s.runOnStart)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C():
			s.runOnce(ctx)
		}
	}
}

// runOnce runs a single cycle inside a recover boundary.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.running.Store(true)

	var (
		report CycleReport
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = NewPanicError(r)
			}
		}()
		report, err = s.runner.RunCycle(ctx)
	}()
	s.running.Store(false)

	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Warn("previous cycle still running, tick skipped")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("cycle interrupted by shutdown", "error", err)
	default:
		s.logger.Error("automation cycle failed, will retry next tick", "error", err)
	}

	if s.onCycle != nil {
		s.onCycle(report, err)
	}
}
