// Package trigger decides which leads currently satisfy a rule's trigger.
//
// Evaluation is a pure function of (trigger, leads, now): no store access,
// no wall clock. The scheduler's polling turns the windowed new-lead check
// into an event-like trigger, so a poll period coarser than the configured
// window can miss leads. That trade-off is deliberate and kept.
package trigger

import (
	"time"

	"github.com/roach88/leadflow/internal/model"
)

// Matches returns the leads satisfying t at now, preserving input order.
// Returns an empty (non-nil) slice when nothing matches.
func Matches(t model.Trigger, leads []model.Lead, now time.Time) []model.Lead {
	var match func(model.Lead) bool

	switch trig := t.(type) {
	case model.NewLead:
		cutoff := now.Add(-trig.Window)
		match = func(l model.Lead) bool {
			// Closed interval [cutoff, now]
			return !l.CreatedAt.Before(cutoff) && !l.CreatedAt.After(now)
		}

	case model.NoActivity:
		cutoff := now.Add(-trig.Threshold)
		match = func(l model.Lead) bool {
			return !l.IsTerminal() && l.LastActivity().Before(cutoff)
		}

	case model.StatusChange:
		match = func(l model.Lead) bool {
			return l.Stage == trig.Value || l.Status == trig.Value
		}

	default:
		return []model.Lead{}
	}

	matched := make([]model.Lead, 0)
	for _, l := range leads {
		if match(l) {
			matched = append(matched, l)
		}
	}
	return matched
}

// MatchRule parses the rule's trigger and evaluates it.
// An unknown trigger kind matches nothing and returns the parse error so the
// caller can report it as a configuration problem.
func MatchRule(rule model.Rule, leads []model.Lead, now time.Time) ([]model.Lead, error) {
	t, err := rule.Trigger()
	if err != nil {
		return []model.Lead{}, err
	}
	return Matches(t, leads, now), nil
}
