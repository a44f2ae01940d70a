package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/leadflow/internal/engine"
	"github.com/roach88/leadflow/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

// evaluateAssertion dispatches an assertion to its checker.
func evaluateAssertion(a Assertion, state State, reports []engine.CycleReport, start time.Time) error {
	switch a.Type {
	case AssertRunLogCount:
		return assertCount(a, countRuns(state.Runs, a))
	case AssertRunLogContains:
		return assertRunLogContains(state.Runs, a)
	case AssertNotificationCount:
		return assertCount(a, countNotifications(state.Notifications, a))
	case AssertNotificationContains:
		return assertNotificationContains(state.Notifications, a)
	case AssertFollowUpCount:
		return assertCount(a, countFollowUps(state.FollowUps, a))
	case AssertFollowUpContains:
		return assertFollowUpContains(state.FollowUps, a, start)
	case AssertCycleReport:
		return assertCycleReport(reports, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(a Assertion, got int) error {
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d %s", *a.Count, describeFilter(a)),
		Actual:   fmt.Sprintf("%d", got),
	}
}

func describeFilter(a Assertion) string {
	var parts []string
	for _, kv := range [][2]string{{"rule", a.Rule}, {"lead", a.Lead}, {"user", a.User}, {"result", a.Result}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if len(parts) == 0 {
		return "records"
	}
	return "records with " + strings.Join(parts, " ")
}

func runMatches(r model.RunLogEntry, a Assertion) bool {
	return (a.Rule == "" || r.RuleID == a.Rule) &&
		(a.Lead == "" || r.LeadID == a.Lead) &&
		(a.Result == "" || string(r.Result) == a.Result)
}

func countRuns(runs []model.RunLogEntry, a Assertion) int {
	n := 0
	for _, r := range runs {
		if runMatches(r, a) {
			n++
		}
	}
	return n
}

func assertRunLogContains(runs []model.RunLogEntry, a Assertion) error {
	for _, r := range runs {
		if runMatches(r, a) && strings.Contains(r.Detail, a.Detail) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("run log entry for rule=%s lead=%s with detail containing %q", a.Rule, a.Lead, a.Detail),
		Actual:   "not found",
	}
}

func notificationMatches(n model.Notification, a Assertion) bool {
	return (a.User == "" || n.UserID == a.User) &&
		(a.NotificationType == "" || n.Type == a.NotificationType) &&
		strings.Contains(n.Title, a.Title) &&
		strings.Contains(n.Link, a.Link)
}

func countNotifications(ns []model.Notification, a Assertion) int {
	n := 0
	for _, x := range ns {
		if a.User == "" || x.UserID == a.User {
			n++
		}
	}
	return n
}

func assertNotificationContains(ns []model.Notification, a Assertion) error {
	for _, n := range ns {
		if notificationMatches(n, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("notification for user=%s type=%q title containing %q link containing %q", a.User, a.NotificationType, a.Title, a.Link),
		Actual:   fmt.Sprintf("not found among %d notifications", len(ns)),
	}
}

func countFollowUps(fs []model.FollowUp, a Assertion) int {
	n := 0
	for _, f := range fs {
		if a.Lead == "" || f.LeadID == a.Lead {
			n++
		}
	}
	return n
}

func assertFollowUpContains(fs []model.FollowUp, a Assertion, start time.Time) error {
	var want time.Time
	if a.ScheduledAt != "" {
		d, err := ParseOffset(a.ScheduledAt)
		if err != nil {
			return err
		}
		want = start.Add(d)
	}

	for _, f := range fs {
		if f.LeadID != a.Lead {
			continue
		}
		if !want.IsZero() && !f.ScheduledAt.Equal(want) {
			continue
		}
		if strings.Contains(f.Note, a.Note) {
			return nil
		}
	}

	expected := fmt.Sprintf("follow-up for lead=%s", a.Lead)
	if !want.IsZero() {
		expected += " scheduled at " + want.Format(time.RFC3339)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("not found among %d follow-ups", len(fs)),
	}
}

func assertCycleReport(reports []engine.CycleReport, a Assertion) error {
	if a.Cycle < 1 || a.Cycle > len(reports) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("cycle %d", a.Cycle),
			Actual:   fmt.Sprintf("%d cycles ran", len(reports)),
		}
	}
	r := reports[a.Cycle-1]

	checks := []struct {
		name string
		want *int
		got  int
	}{
		{"matched", a.Matched, r.Matched},
		{"performed", a.Performed, r.Performed},
		{"skipped", a.Skipped, r.Skipped},
		{"failed", a.Failed, r.Failed},
		{"config_errors", a.ConfigErrors, r.ConfigErrors},
	}

	var diffs []string
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			diffs = append(diffs, fmt.Sprintf("%s=%d (want %d)", c.name, c.got, *c.want))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("cycle %d report to match", a.Cycle),
		Actual:   strings.Join(diffs, ", "),
	}
}
