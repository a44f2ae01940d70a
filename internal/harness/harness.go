package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/leadflow/internal/dispatch"
	"github.com/roach88/leadflow/internal/engine"
	"github.com/roach88/leadflow/internal/model"
	"github.com/roach88/leadflow/internal/ruleset"
	"github.com/roach88/leadflow/internal/store"
	"github.com/roach88/leadflow/internal/testutil"
)

// env is the isolated world a scenario runs in.
type env struct {
	store  *store.Store
	clock  *testutil.FakeClock
	engine *engine.Engine
	start  time.Time

	// IDs already reported in an earlier trace event.
	seenRuns          map[string]bool
	seenNotifications map[string]bool
	seenFollowUps     map[string]bool
}

// Run executes a scenario against a fresh in-memory store.
//
// Execution model:
//  1. Seed the optional ruleset, then inline users, rules and leads
//  2. Execute steps in order; every cycle appends one TraceEvent
//  3. Evaluate assertions against the final state and cycle reports
//
// Cycles run with a single worker so traces are deterministic.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	result := NewResult()

	start, err := scenario.StartTime()
	if err != nil {
		return nil, err
	}

	e, err := newEnv(start)
	if err != nil {
		return nil, err
	}
	defer e.store.Close()

	if err := e.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("seed scenario: %w", err)
	}

	cycle := 0
	for i, step := range scenario.Steps {
		switch {
		case step.Advance != "":
			d, err := ParseOffset(step.Advance)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			e.clock.Advance(d)
		case step.PutLead != nil:
			if err := e.putLead(ctx, *step.PutLead); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		case step.Cycle:
			cycle++
			report, err := e.engine.RunCycle(ctx)
			if err != nil {
				return nil, fmt.Errorf("step %d: cycle %d: %w", i, cycle, err)
			}
			event, err := e.traceEvent(ctx, cycle, report)
			if err != nil {
				return nil, fmt.Errorf("step %d: trace cycle %d: %w", i, cycle, err)
			}
			result.Trace = append(result.Trace, event)
			result.Reports = append(result.Reports, report)
		}
	}

	state, err := e.finalState(ctx)
	if err != nil {
		return nil, err
	}

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(a, state, result.Reports, start); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	return result, nil
}

func newEnv(start time.Time) (*env, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clk := testutil.NewFakeClock(start)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dispatch.New(st, clk, testutil.NewSequentialIDs("id"), dispatch.WithLogger(logger))
	eng := engine.New(st, d, clk, engine.WithWorkers(1), engine.WithLogger(logger))

	return &env{
		store:             st,
		clock:             clk,
		engine:            eng,
		start:             start,
		seenRuns:          make(map[string]bool),
		seenNotifications: make(map[string]bool),
		seenFollowUps:     make(map[string]bool),
	}, nil
}

func (e *env) seed(ctx context.Context, s *Scenario) error {
	if s.Ruleset != "" {
		res, errs := ruleset.LoadDir(s.Ruleset, ruleset.LoadModeFailFast)
		if len(errs) > 0 {
			return fmt.Errorf("load ruleset %s: %w", s.Ruleset, errs[0])
		}
		if err := ruleset.Apply(ctx, e.store, res, e.start); err != nil {
			return err
		}
	}

	for _, u := range s.Users {
		if err := e.store.PutUser(ctx, model.User{ID: u.ID, Name: u.Name, Email: u.Email}); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	for _, r := range s.Rules {
		active := true
		if r.Active != nil {
			active = *r.Active
		}
		rule := model.Rule{
			ID:           r.ID,
			Name:         r.Name,
			TriggerKind:  model.TriggerKind(r.Trigger),
			TriggerValue: r.TriggerValue,
			ActionKind:   model.ActionKind(r.Action),
			ActionValue:  r.ActionValue,
			Active:       active,
			CreatedBy:    r.CreatedBy,
			CreatedAt:    e.start,
		}
		if err := e.store.PutRule(ctx, rule); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	for _, l := range s.Leads {
		if err := e.putLead(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// putLead writes a lead with timestamps relative to the current clock.
func (e *env) putLead(ctx context.Context, def LeadDef) error {
	now := e.clock.Now()

	lead := model.Lead{
		ID:         def.ID,
		Name:       def.Name,
		Phone:      def.Phone,
		Status:     def.Status,
		Stage:      def.Stage,
		AssignedTo: def.AssignedTo,
		CreatedAt:  now,
	}
	if lead.Status == "" {
		lead.Status = "new"
	}
	if def.Created != "" {
		d, err := ParseOffset(def.Created)
		if err != nil {
			return fmt.Errorf("lead %s: created: %w", def.ID, err)
		}
		lead.CreatedAt = now.Add(d)
	}
	if def.LastActivity != "" {
		d, err := ParseOffset(def.LastActivity)
		if err != nil {
			return fmt.Errorf("lead %s: last_activity: %w", def.ID, err)
		}
		t := now.Add(d)
		lead.LastActivityAt = &t
	}

	if err := e.store.PutLead(ctx, lead); err != nil {
		return fmt.Errorf("lead %s: %w", def.ID, err)
	}
	return nil
}

// traceEvent builds the event for a cycle from the records it created.
func (e *env) traceEvent(ctx context.Context, cycle int, report engine.CycleReport) (TraceEvent, error) {
	event := TraceEvent{
		Cycle:         cycle,
		At:            report.StartedAt.UTC().Format(time.RFC3339),
		Matched:       report.Matched,
		Performed:     report.Performed,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		ConfigErrors:  report.ConfigErrors,
		Runs:          []RunTrace{},
		Notifications: []NotificationTrace{},
		FollowUps:     []FollowUpTrace{},
	}

	runs, err := e.store.ListRunLog(ctx, store.RunLogFilter{})
	if err != nil {
		return TraceEvent{}, err
	}
	for _, r := range runs {
		if e.seenRuns[r.ID] {
			continue
		}
		e.seenRuns[r.ID] = true
		event.Runs = append(event.Runs, RunTrace{
			Rule:   r.RuleID,
			Lead:   r.LeadID,
			Action: string(r.Action),
			Result: string(r.Result),
			Detail: r.Detail,
		})
	}

	notifications, err := e.store.ListNotifications(ctx, "")
	if err != nil {
		return TraceEvent{}, err
	}
	for _, n := range notifications {
		if e.seenNotifications[n.ID] {
			continue
		}
		e.seenNotifications[n.ID] = true
		event.Notifications = append(event.Notifications, NotificationTrace{
			User:    n.UserID,
			Type:    n.Type,
			Title:   n.Title,
			Message: n.Message,
			Link:    n.Link,
		})
	}

	followUps, err := e.store.ListFollowUps(ctx, "")
	if err != nil {
		return TraceEvent{}, err
	}
	for _, f := range followUps {
		if e.seenFollowUps[f.ID] {
			continue
		}
		e.seenFollowUps[f.ID] = true
		event.FollowUps = append(event.FollowUps, FollowUpTrace{
			Lead:        f.LeadID,
			AssignedTo:  f.AssignedTo,
			ScheduledAt: f.ScheduledAt.UTC().Format(time.RFC3339),
			Note:        f.Note,
		})
	}

	sortEvent(&event)
	return event, nil
}

// sortEvent orders records by content so traces do not depend on IDs.
func sortEvent(ev *TraceEvent) {
	sort.Slice(ev.Runs, func(i, j int) bool {
		a, b := ev.Runs[i], ev.Runs[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Lead < b.Lead
	})
	sort.Slice(ev.Notifications, func(i, j int) bool {
		a, b := ev.Notifications[i], ev.Notifications[j]
		if a.User != b.User {
			return a.User < b.User
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Message < b.Message
	})
	sort.Slice(ev.FollowUps, func(i, j int) bool {
		a, b := ev.FollowUps[i], ev.FollowUps[j]
		if a.Lead != b.Lead {
			return a.Lead < b.Lead
		}
		if a.ScheduledAt != b.ScheduledAt {
			return a.ScheduledAt < b.ScheduledAt
		}
		return a.Note < b.Note
	})
}

// State is the final store contents assertions run against.
type State struct {
	Runs          []model.RunLogEntry
	Notifications []model.Notification
	FollowUps     []model.FollowUp
}

func (e *env) finalState(ctx context.Context) (State, error) {
	runs, err := e.store.ListRunLog(ctx, store.RunLogFilter{})
	if err != nil {
		return State{}, fmt.Errorf("final run log: %w", err)
	}
	notifications, err := e.store.ListNotifications(ctx, "")
	if err != nil {
		return State{}, fmt.Errorf("final notifications: %w", err)
	}
	followUps, err := e.store.ListFollowUps(ctx, "")
	if err != nil {
		return State{}, fmt.Errorf("final follow-ups: %w", err)
	}
	return State{Runs: runs, Notifications: notifications, FollowUps: followUps}, nil
}
