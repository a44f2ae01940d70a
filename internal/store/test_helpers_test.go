package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/leadflow/internal/model"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRule creates a rule with minimal required fields.
func createTestRule(id string, active bool, createdAt time.Time) model.Rule {
	return model.Rule{
		ID:           id,
		Name:         "rule " + id,
		TriggerKind:  model.TriggerNewLead,
		TriggerValue: "5",
		ActionKind:   model.ActionCreateNotification,
		Active:       active,
		CreatedBy:    "u-admin",
		CreatedAt:    createdAt,
	}
}

// createTestEntry creates a success run-log entry for a pair.
func createTestEntry(id, ruleID, leadID string) model.RunLogEntry {
	return model.RunLogEntry{
		ID:        id,
		RuleID:    ruleID,
		LeadID:    leadID,
		Action:    model.ActionCreateNotification,
		Result:    model.RunSuccess,
		Detail:    "ok",
		CreatedAt: testNow,
	}
}
