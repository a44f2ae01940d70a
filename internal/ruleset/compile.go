package ruleset

import (
	"fmt"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/leadflow/internal/model"
)

// CompileError is a field-level compilation error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileRule parses a CUE value into a Rule.
//
// The CUE value should be the rule struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: welcome: { ... }`)
//	rule, err := CompileRule(v.LookupPath(cue.ParsePath("rule.welcome")))
//
// The rule ID is the struct label. A zero CreatedAt means the definition did
// not set created_at; Apply stamps it at load time.
func CompileRule(v cue.Value) (*model.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rule := &model.Rule{ID: label(v), Active: true}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	rule.Name = name

	// Trigger (required)
	trigVal := v.LookupPath(cue.ParsePath("trigger"))
	if !trigVal.Exists() {
		return nil, &CompileError{Field: "trigger", Message: "trigger is required", Pos: v.Pos()}
	}
	kind, value, err := kindAndValue(trigVal, "trigger")
	if err != nil {
		return nil, err
	}
	if _, err := model.ParseTrigger(model.TriggerKind(kind), value); err != nil {
		return nil, &CompileError{Field: "trigger.kind", Message: err.Error(), Pos: trigVal.Pos()}
	}
	rule.TriggerKind = model.TriggerKind(kind)
	rule.TriggerValue = value

	// Action (required)
	actVal := v.LookupPath(cue.ParsePath("action"))
	if !actVal.Exists() {
		return nil, &CompileError{Field: "action", Message: "action is required", Pos: v.Pos()}
	}
	kind, value, err = kindAndValue(actVal, "action")
	if err != nil {
		return nil, err
	}
	if _, err := model.ParseAction(model.ActionKind(kind), value); err != nil {
		return nil, &CompileError{Field: "action.kind", Message: err.Error(), Pos: actVal.Pos()}
	}
	rule.ActionKind = model.ActionKind(kind)
	rule.ActionValue = value

	// Optional fields
	if activeVal := v.LookupPath(cue.ParsePath("active")); activeVal.Exists() {
		active, err := activeVal.Bool()
		if err != nil {
			return nil, &CompileError{Field: "active", Message: "active must be a bool", Pos: activeVal.Pos()}
		}
		rule.Active = active
	}
	if rule.CreatedBy, err = optionalString(v, "created_by"); err != nil {
		return nil, err
	}
	if rule.CreatedAt, err = optionalTime(v, "created_at"); err != nil {
		return nil, err
	}

	return rule, nil
}

// CompileUser parses a CUE value into a User. The user ID is the struct label.
func CompileUser(v cue.Value) (*model.User, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	u := &model.User{ID: label(v)}
	var err error
	if u.Name, err = optionalString(v, "name"); err != nil {
		return nil, err
	}
	if u.Email, err = optionalString(v, "email"); err != nil {
		return nil, err
	}
	return u, nil
}

// CompileLead parses a CUE value into a Lead. The lead ID is the struct
// label; created_at is required.
func CompileLead(v cue.Value) (*model.Lead, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	l := &model.Lead{ID: label(v)}
	var err error
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"name", &l.Name},
		{"phone", &l.Phone},
		{"status", &l.Status},
		{"stage", &l.Stage},
		{"assigned_to", &l.AssignedTo},
	} {
		if *f.dst, err = optionalString(v, f.name); err != nil {
			return nil, err
		}
	}

	if !v.LookupPath(cue.ParsePath("created_at")).Exists() {
		return nil, &CompileError{Field: "created_at", Message: "created_at is required", Pos: v.Pos()}
	}
	if l.CreatedAt, err = optionalTime(v, "created_at"); err != nil {
		return nil, err
	}

	last, err := optionalTime(v, "last_activity_at")
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		l.LastActivityAt = &last
	}
	return l, nil
}

// label returns the last path selector of v (the struct key).
func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].Unquoted()
}

// kindAndValue reads {kind: string, value?: string | int}.
func kindAndValue(v cue.Value, field string) (kind, value string, err error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return "", "", &CompileError{Field: field + ".kind", Message: "kind is required", Pos: v.Pos()}
	}
	if kind, err = kindVal.String(); err != nil {
		return "", "", &CompileError{Field: field + ".kind", Message: "kind must be a string", Pos: kindVal.Pos()}
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if !valueVal.Exists() {
		return kind, "", nil
	}
	switch valueVal.Kind() {
	case cue.StringKind:
		value, _ = valueVal.String()
	case cue.IntKind:
		n, err := valueVal.Int64()
		if err != nil {
			return "", "", formatCUEError(err)
		}
		value = strconv.FormatInt(n, 10)
	default:
		return "", "", &CompileError{
			Field:   field + ".value",
			Message: "value must be a string or int",
			Pos:     valueVal.Pos(),
		}
	}
	return kind, value, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

// optionalTime reads an RFC 3339 timestamp; absent yields the zero time.
func optionalTime(v cue.Value, field string) (time.Time, error) {
	s, err := optionalString(v, field)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid RFC 3339 timestamp %q", s),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}
	return t.UTC(), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
