package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStart is the scenario clock's start time when none is given.
var DefaultStart = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario (and names its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 start time of the scenario clock.
	// Defaults to DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Ruleset is an optional CUE ruleset directory loaded before the inline
	// definitions. Relative paths resolve against the scenario file.
	Ruleset string `yaml:"ruleset,omitempty"`

	Users []UserDef `yaml:"users,omitempty"`
	Rules []RuleDef `yaml:"rules,omitempty"`
	Leads []LeadDef `yaml:"leads,omitempty"`

	// Steps run in order. At least one must be a cycle.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and cycle reports.
	Assertions []Assertion `yaml:"assertions"`
}

// UserDef seeds a user.
type UserDef struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// RuleDef seeds a rule. Active defaults to true.
type RuleDef struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Trigger      string `yaml:"trigger"`
	TriggerValue string `yaml:"trigger_value,omitempty"`
	Action       string `yaml:"action"`
	ActionValue  string `yaml:"action_value,omitempty"`
	Active       *bool  `yaml:"active,omitempty"`
	CreatedBy    string `yaml:"created_by,omitempty"`
}

// LeadDef seeds a lead. Created and LastActivity are offsets from the
// scenario clock at the time the lead is written, e.g. "-3m" or "-2d".
type LeadDef struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name,omitempty"`
	Phone        string `yaml:"phone,omitempty"`
	Status       string `yaml:"status,omitempty"`
	Stage        string `yaml:"stage,omitempty"`
	AssignedTo   string `yaml:"assigned_to,omitempty"`
	Created      string `yaml:"created,omitempty"`
	LastActivity string `yaml:"last_activity,omitempty"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	Cycle   bool     `yaml:"cycle,omitempty"`
	Advance string   `yaml:"advance,omitempty"`
	PutLead *LeadDef `yaml:"put_lead,omitempty"`
}

// Assertion validates final state or a cycle report.
type Assertion struct {
	// Type selects the assertion; see the Assert* constants.
	Type string `yaml:"type"`

	// Filters. Empty means "any".
	Rule string `yaml:"rule,omitempty"`
	Lead string `yaml:"lead,omitempty"`
	User string `yaml:"user,omitempty"`

	// Count is the expected number of matching records (*_count types).
	Count *int `yaml:"count,omitempty"`

	// Result, Detail, NotificationType, Title, Link, Note and ScheduledAt are
	// expectations for the *_contains types. Detail, Title, Link and Note are
	// substring matches; ScheduledAt is an offset from the scenario start.
	Result           string `yaml:"result,omitempty"`
	Detail           string `yaml:"detail,omitempty"`
	NotificationType string `yaml:"notification_type,omitempty"`
	Title            string `yaml:"title,omitempty"`
	Link             string `yaml:"link,omitempty"`
	Note             string `yaml:"note,omitempty"`
	ScheduledAt      string `yaml:"scheduled_at,omitempty"`

	// Cycle (1-based) and the expected report fields for cycle_report.
	Cycle        int  `yaml:"cycle,omitempty"`
	Matched      *int `yaml:"matched,omitempty"`
	Performed    *int `yaml:"performed,omitempty"`
	Skipped      *int `yaml:"skipped,omitempty"`
	Failed       *int `yaml:"failed,omitempty"`
	ConfigErrors *int `yaml:"config_errors,omitempty"`
}

// Assertion type constants.
const (
	AssertRunLogCount          = "run_log_count"
	AssertRunLogContains       = "run_log_contains"
	AssertNotificationCount    = "notification_count"
	AssertNotificationContains = "notification_contains"
	AssertFollowUpCount        = "follow_up_count"
	AssertFollowUpContains     = "follow_up_contains"
	AssertCycleReport          = "cycle_report"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Ruleset != "" && !filepath.IsAbs(scenario.Ruleset) {
		scenario.Ruleset = filepath.Join(filepath.Dir(path), scenario.Ruleset)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// StartTime returns the scenario clock's start time.
func (s *Scenario) StartTime() (time.Time, error) {
	if s.Start == "" {
		return DefaultStart, nil
	}
	t, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return t.UTC(), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := s.StartTime(); err != nil {
		return err
	}

	for i, u := range s.Users {
		if u.ID == "" {
			return fmt.Errorf("users[%d]: id is required", i)
		}
	}
	for i, r := range s.Rules {
		if r.ID == "" || r.Name == "" || r.Trigger == "" || r.Action == "" {
			return fmt.Errorf("rules[%d]: id, name, trigger and action are required", i)
		}
	}
	for i, l := range s.Leads {
		if err := validateLead(l); err != nil {
			return fmt.Errorf("leads[%d]: %w", i, err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	cycles := 0
	for i, step := range s.Steps {
		set := 0
		if step.Cycle {
			set++
			cycles++
		}
		if step.Advance != "" {
			set++
			if d, err := ParseOffset(step.Advance); err != nil {
				return fmt.Errorf("steps[%d].advance: %w", i, err)
			} else if d <= 0 {
				return fmt.Errorf("steps[%d].advance: must be positive, got %s", i, step.Advance)
			}
		}
		if step.PutLead != nil {
			set++
			if err := validateLead(*step.PutLead); err != nil {
				return fmt.Errorf("steps[%d].put_lead: %w", i, err)
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of cycle, advance or put_lead is required", i)
		}
	}
	if cycles == 0 {
		return fmt.Errorf("steps must contain at least one cycle")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], cycles); err != nil {
			return err
		}
	}

	return nil
}

func validateLead(l LeadDef) error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	for _, f := range [][2]string{{"created", l.Created}, {"last_activity", l.LastActivity}} {
		if f[1] == "" {
			continue
		}
		if _, err := ParseOffset(f[1]); err != nil {
			return fmt.Errorf("%s: %w", f[0], err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, cycles int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRunLogCount, AssertNotificationCount, AssertFollowUpCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertRunLogContains:
		if a.Rule == "" || a.Lead == "" {
			return fmt.Errorf("assertions[%d]: rule and lead are required for %s", index, a.Type)
		}
	case AssertNotificationContains:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for %s", index, a.Type)
		}
	case AssertFollowUpContains:
		if a.Lead == "" {
			return fmt.Errorf("assertions[%d]: lead is required for %s", index, a.Type)
		}
		if a.ScheduledAt != "" {
			if _, err := ParseOffset(a.ScheduledAt); err != nil {
				return fmt.Errorf("assertions[%d].scheduled_at: %w", index, err)
			}
		}
	case AssertCycleReport:
		if a.Cycle < 1 || a.Cycle > cycles {
			return fmt.Errorf("assertions[%d]: cycle must be between 1 and %d", index, cycles)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// ParseOffset parses a signed duration. In addition to time.ParseDuration
// syntax it accepts whole days with a "d" suffix ("-2d", "3d").
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day offset %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return d, nil
}
