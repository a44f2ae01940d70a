package harness

import "github.com/roach88/leadflow/internal/engine"

// TraceEvent records what one automation cycle did.
type TraceEvent struct {
	Cycle         int                 `json:"cycle"`
	At            string              `json:"at"`
	Matched       int                 `json:"matched"`
	Performed     int                 `json:"performed"`
	Skipped       int                 `json:"skipped"`
	Failed        int                 `json:"failed"`
	ConfigErrors  int                 `json:"config_errors"`
	Runs          []RunTrace          `json:"runs"`
	Notifications []NotificationTrace `json:"notifications"`
	FollowUps     []FollowUpTrace     `json:"follow_ups"`
}

// RunTrace is a run-log entry without its generated ID.
type RunTrace struct {
	Rule   string `json:"rule"`
	Lead   string `json:"lead"`
	Action string `json:"action"`
	Result string `json:"result"`
	Detail string `json:"detail"`
}

// NotificationTrace is a notification without its generated ID.
type NotificationTrace struct {
	User    string `json:"user"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// FollowUpTrace is a follow-up without its generated ID.
type FollowUpTrace struct {
	Lead        string `json:"lead"`
	AssignedTo  string `json:"assigned_to"`
	ScheduledAt string `json:"scheduled_at"`
	Note        string `json:"note"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains one event per cycle step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Reports holds the raw cycle reports, in step order.
	Reports []engine.CycleReport `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
