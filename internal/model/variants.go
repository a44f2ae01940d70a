package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parameter defaults applied when a rule value is absent or unparseable.
const (
	DefaultNewLeadMinutes = 5
	DefaultNoActivityDays = 1
	DefaultFollowUpDays   = 2
	day                   = 24 * time.Hour
)

// Trigger is the closed set of typed trigger conditions.
// Implemented by NewLead, NoActivity and StatusChange only.
type Trigger interface {
	Kind() TriggerKind
	isTrigger()
}

// NewLead matches leads created within Window of now.
type NewLead struct {
	Window time.Duration
}

// NoActivity matches non-terminal leads idle for longer than Threshold.
type NoActivity struct {
	Threshold time.Duration
}

// StatusChange matches leads whose status or stage equals Value.
type StatusChange struct {
	Value string
}

func (NewLead) Kind() TriggerKind      { return TriggerNewLead }
func (NoActivity) Kind() TriggerKind   { return TriggerNoActivity }
func (StatusChange) Kind() TriggerKind { return TriggerStatusChange }

func (NewLead) isTrigger()      {}
func (NoActivity) isTrigger()   {}
func (StatusChange) isTrigger() {}

// Action is the closed set of typed side effects.
// Implemented by SendWhatsApp, CreateNotification and CreateFollowUp only.
type Action interface {
	Kind() ActionKind
	isAction()
}

// SendWhatsApp composes a wa.me deep link for the lead.
type SendWhatsApp struct{}

// CreateNotification raises a reminder for the lead's owner.
type CreateNotification struct{}

// CreateFollowUp schedules a follow-up Offset after now.
type CreateFollowUp struct {
	Offset time.Duration
}

func (SendWhatsApp) Kind() ActionKind       { return ActionSendWhatsApp }
func (CreateNotification) Kind() ActionKind { return ActionCreateNotification }
func (CreateFollowUp) Kind() ActionKind     { return ActionCreateFollowUp }

func (SendWhatsApp) isAction()       {}
func (CreateNotification) isAction() {}
func (CreateFollowUp) isAction()     {}

// UnknownKindError reports a trigger or action kind outside the closed set.
type UnknownKindError struct {
	Field string // "trigger" or "action"
	Kind  string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Field, e.Kind)
}

// ParseTrigger converts a persisted (kind, value) pair into a typed trigger.
func ParseTrigger(kind TriggerKind, value string) (Trigger, error) {
	switch kind {
	case TriggerNewLead:
		return NewLead{Window: time.Duration(positiveInt(value, DefaultNewLeadMinutes)) * time.Minute}, nil
	case TriggerNoActivity:
		return NoActivity{Threshold: time.Duration(positiveInt(value, DefaultNoActivityDays)) * day}, nil
	case TriggerStatusChange:
		return StatusChange{Value: value}, nil
	default:
		return nil, &UnknownKindError{Field: "trigger", Kind: string(kind)}
	}
}

// ParseAction converts a persisted (kind, value) pair into a typed action.
func ParseAction(kind ActionKind, value string) (Action, error) {
	switch kind {
	case ActionSendWhatsApp:
		return SendWhatsApp{}, nil
	case ActionCreateNotification:
		return CreateNotification{}, nil
	case ActionCreateFollowUp:
		return CreateFollowUp{Offset: time.Duration(positiveInt(value, DefaultFollowUpDays)) * day}, nil
	default:
		return nil, &UnknownKindError{Field: "action", Kind: string(kind)}
	}
}

// Trigger parses the rule's trigger.
func (r Rule) Trigger() (Trigger, error) {
	return ParseTrigger(r.TriggerKind, r.TriggerValue)
}

// Action parses the rule's action.
func (r Rule) Action() (Action, error) {
	return ParseAction(r.ActionKind, r.ActionValue)
}

// positiveInt parses s as a positive integer, returning def when s is empty,
// malformed, zero or negative.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
