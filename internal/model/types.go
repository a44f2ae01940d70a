package model

import "time"

// TriggerKind is the persisted name of a trigger condition class.
type TriggerKind string

const (
	TriggerNewLead      TriggerKind = "new_lead"
	TriggerNoActivity   TriggerKind = "no_activity"
	TriggerStatusChange TriggerKind = "status_change"
)

// ActionKind is the persisted name of a side effect.
type ActionKind string

const (
	ActionSendWhatsApp       ActionKind = "send_whatsapp"
	ActionCreateNotification ActionKind = "create_notification"
	ActionCreateFollowUp     ActionKind = "create_followup"
)

// Lead statuses the no-activity trigger never matches.
const (
	StatusConverted     = "converted"
	StatusNotInterested = "not_interested"
)

// Rule is a declarative trigger+action configuration. Read-only to the engine.
type Rule struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	TriggerKind  TriggerKind `json:"trigger"`
	TriggerValue string      `json:"trigger_value"`
	ActionKind   ActionKind  `json:"action"`
	ActionValue  string      `json:"action_value"`
	Active       bool        `json:"active"`
	CreatedBy    string      `json:"created_by"` // User id, may be empty
	CreatedAt    time.Time   `json:"created_at"`
}

// Lead is a business record scanned by the engine.
type Lead struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Status         string     `json:"status"`
	Stage          string     `json:"stage"`
	AssignedTo     string     `json:"assigned_to"` // Empty when unassigned
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// LastActivity returns the last activity timestamp, falling back to the
// creation timestamp when no activity was ever recorded.
func (l Lead) LastActivity() time.Time {
	if l.LastActivityAt == nil {
		return l.CreatedAt
	}
	return *l.LastActivityAt
}

// IsTerminal reports whether the lead's status permanently excludes it from
// the no-activity trigger.
func (l Lead) IsTerminal() bool {
	return l.Status == StatusConverted || l.Status == StatusNotInterested
}

// RunResult marks the outcome recorded in a run-log entry.
type RunResult string

const (
	RunSuccess RunResult = "success"
	RunFailure RunResult = "failure"
)

// RunLogEntry asserts that an action was attempted for a (rule, lead) pair.
// At most one entry exists per pair; entries are never mutated or deleted.
type RunLogEntry struct {
	ID        string     `json:"id"`
	RuleID    string     `json:"rule_id"`
	LeadID    string     `json:"lead_id"`
	Action    ActionKind `json:"action"`
	Result    RunResult  `json:"result"`
	Detail    string     `json:"detail"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notification types emitted by the dispatcher.
const (
	NotificationAutomation = "automation"
	NotificationReminder   = "reminder"
)

// Notification is an in-app message addressed to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowUp is a scheduled reminder to contact a lead.
type FollowUp struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"lead_id"`
	AssignedTo  string    `json:"assigned_to"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a notification or follow-up target.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Effect is the side effect committed together with a success entry.
// At most one field is set; both nil means the entry stands alone.
type Effect struct {
	Notification *Notification
	FollowUp     *FollowUp
}
