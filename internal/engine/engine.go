package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/leadflow/internal/clock"
	"github.com/roach88/leadflow/internal/dispatch"
	"github.com/roach88/leadflow/internal/model"
	"github.com/roach88/leadflow/internal/trigger"
)

// DefaultWorkers is the default number of pairs dispatched concurrently.
const DefaultWorkers = 4

// Store is the read side of the entity store used by a cycle.
// Implemented by *store.Store.
type Store interface {
	ListActiveRules(ctx context.Context) ([]model.Rule, error)
	ListLeads(ctx context.Context) ([]model.Lead, error)
}

// Snapshotter is implemented by stores that can read rules and leads from a
// single consistent state. RunCycle prefers it when available.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]model.Rule, []model.Lead, error)
}

// Dispatcher executes one matched pair. Implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	Execute(ctx context.Context, rule model.Rule, lead model.Lead) dispatch.Result
}

// CycleReport summarises one automation cycle.
type CycleReport struct {
	Rules        int           `json:"rules"`
	Leads        int           `json:"leads"`
	Matched      int           `json:"matched"`
	Performed    int           `json:"performed"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	ConfigErrors int           `json:"config_errors"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Engine evaluates active rules against the lead population.
//
// Thread-safety model:
//   - RunCycle(): safe from any goroutine; a call made while another cycle
//     runs returns ErrCycleInProgress immediately
//   - Pairs inside a cycle are dispatched concurrently, bounded by workers
//
// INVARIANTS:
//   - At most one cycle runs at a time
//   - All trigger windows in a cycle use the same "now" (cycle start)
type Engine struct {
	store      Store
	dispatcher Dispatcher
	clock      clock.Clock
	workers    int
	logger     *slog.Logger

	running sync.Mutex
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithWorkers sets the dispatch concurrency.
//
// Default: 4 (DefaultWorkers). Values below 1 keep the default.
// Use WithWorkers(1) for deterministic dispatch order.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(s Store, d Dispatcher, c clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		dispatcher: d,
		clock:      c,
		workers:    DefaultWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pair is one unit of dispatch work.
type pair struct {
	rule model.Rule
	lead model.Lead
}

// RunCycle runs one automation pass.
//
// Returns ErrCycleInProgress if another cycle is running, a *RuntimeError
// with ErrCodeStoreRead if the snapshot cannot be loaded, or ctx.Err() if the
// context is cancelled before every pair was scheduled. Per-pair failures are
// counted in the report, never returned.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.running.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer e.running.Unlock()

	now := e.clock.Now()
	report := CycleReport{StartedAt: now}

	rules, leads, err := e.load(ctx)
	if err != nil {
		return report, NewStoreReadError(err)
	}
	report.Rules = len(rules)
	report.Leads = len(leads)

	var work []pair
	for _, rule := range rules {
		matched, err := trigger.MatchRule(rule, leads, now)
		if err != nil {
			report.ConfigErrors++
			e.logger.Warn("skipping rule with invalid configuration",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"error", NewInvalidRuleError(rule.ID, err))
			continue
		}
		for _, lead := range matched {
			work = append(work, pair{rule: rule, lead: lead})
		}
	}
	report.Matched = len(work)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.workers)

	var cancelled error
	for _, p := range work {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		g.Go(func() error {
			res := e.dispatcher.Execute(ctx, p.rule, p.lead)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Performed:
				report.Performed++
			case res.Err != nil:
				report.Failed++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors

	report.Duration = e.clock.Now().Sub(now)

	e.logger.Info("automation cycle complete",
		"rules", report.Rules,
		"leads", report.Leads,
		"matched", report.Matched,
		"performed", report.Performed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"config_errors", report.ConfigErrors,
		"duration", report.Duration)

	return report, cancelled
}

// load reads the cycle snapshot.
func (e *Engine) load(ctx context.Context) ([]model.Rule, []model.Lead, error) {
	if snap, ok := e.store.(Snapshotter); ok {
		return snap.Snapshot(ctx)
	}

	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active rules: %w", err)
	}
	leads, err := e.store.ListLeads(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list leads: %w", err)
	}
	return rules, leads, nil
}

// Preflight inspects the active rules without dispatching anything and
// returns one warning per problem found:
//   - unknown trigger or action kinds (the rule never fires)
//   - new_lead windows shorter than period (leads created between polls can
//     age out of the window before the next cycle sees them)
//
// Each warning is also logged at Warn level.
func (e *Engine) Preflight(ctx context.Context, period time.Duration) ([]string, error) {
	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return nil, NewStoreReadError(err)
	}

	warnings := []string{}
	for _, rule := range rules {
		for _, msg := range ruleWarnings(rule, period) {
			e.logger.Warn(msg, "rule_id", rule.ID, "rule_name", rule.Name)
			warnings = append(warnings, fmt.Sprintf("rule %s: %s", rule.ID, msg))
		}
	}
	return warnings, nil
}

// ruleWarnings lists configuration problems for a single rule.
func ruleWarnings(rule model.Rule, period time.Duration) []string {
	var out []string

	trig, err := rule.Trigger()
	switch t := trig.(type) {
	case nil:
		out = append(out, err.Error())
	case model.NewLead:
		if period > 0 && t.Window < period {
			out = append(out, fmt.Sprintf("new_lead window %s is shorter than the scheduler period %s; leads may be missed", t.Window, period))
		}
	case model.StatusChange:
		// Leads are stored with an empty stage by default
		if t.Value == "" {
			out = append(out, "status_change value is empty; the rule matches every lead without a stage")
		}
	}

	if _, err := rule.Action(); err != nil {
		out = append(out, err.Error())
	}
	return out
}
