package engine

import (
	"errors"
	"fmt"
)

// ErrCycleInProgress is returned by RunCycle when another cycle holds the
// engine. The caller should simply wait for the next tick.
var ErrCycleInProgress = errors.New("automation cycle already in progress")

// RuntimeError represents an error detected while running a cycle.
//
// Runtime errors include:
//   - Store read: rules or leads could not be loaded, the pass is aborted
//   - Invalid rule: a rule's trigger or action kind is unknown
//   - Panic: a cycle panicked and was recovered by the scheduler
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the affected rule, if any.
	RuleID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStoreRead indicates the cycle could not load its snapshot.
	ErrCodeStoreRead RuntimeErrorCode = "STORE_READ"

	// ErrCodeInvalidRule indicates a rule with an unknown trigger or action.
	ErrCodeInvalidRule RuntimeErrorCode = "INVALID_RULE"

	// ErrCodePanic indicates a recovered panic.
	ErrCodePanic RuntimeErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RuleID != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.RuleID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsInvalidRule returns true if the error is an invalid rule error.
// Uses errors.As to handle wrapped errors.
func IsInvalidRule(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidRule
	}
	return false
}

// NewStoreReadError creates a RuntimeError for a failed snapshot load.
func NewStoreReadError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStoreRead,
		Message: "load rules and leads",
		Err:     err,
	}
}

// NewInvalidRuleError creates a RuntimeError for a rule that cannot be parsed.
func NewInvalidRuleError(ruleID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidRule,
		Message: "rule skipped",
		RuleID:  ruleID,
		Err:     err,
	}
}

// NewPanicError creates a RuntimeError from a recovered panic value.
func NewPanicError(v any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePanic,
		Message: fmt.Sprintf("cycle panicked: %v", v),
	}
}
