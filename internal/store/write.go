package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/leadflow/internal/model"
)

// PutUser inserts or replaces a user.
func (s *Store) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email
	`, u.ID, u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// PutRule inserts or replaces a rule. Rules are configuration; the engine
// itself never calls this.
func (s *Store) PutRule(ctx context.Context, r model.Rule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules
		(id, name, trigger_kind, trigger_value, action_kind, action_value, active, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger_kind = excluded.trigger_kind,
			trigger_value = excluded.trigger_value,
			action_kind = excluded.action_kind,
			action_value = excluded.action_value,
			active = excluded.active,
			created_by = excluded.created_by
	`,
		r.ID,
		r.Name,
		string(r.TriggerKind),
		r.TriggerValue,
		string(r.ActionKind),
		r.ActionValue,
		boolToInt(r.Active),
		r.CreatedBy,
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	return nil
}

// PutLead inserts or replaces a lead.
func (s *Store) PutLead(ctx context.Context, l model.Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads
		(id, name, phone, status, stage, assigned_to, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			status = excluded.status,
			stage = excluded.stage,
			assigned_to = excluded.assigned_to,
			created_at = excluded.created_at,
			last_activity_at = excluded.last_activity_at
	`,
		l.ID,
		l.Name,
		l.Phone,
		l.Status,
		l.Stage,
		l.AssignedTo,
		formatTime(l.CreatedAt),
		formatNullTime(l.LastActivityAt),
	)
	if err != nil {
		return fmt.Errorf("put lead: %w", err)
	}
	return nil
}

// CreateRunLog inserts a run-log entry.
// Returns ErrDuplicateRun if an entry already exists for (RuleID, LeadID).
func (s *Store) CreateRunLog(ctx context.Context, e model.RunLogEntry) (model.RunLogEntry, error) {
	if err := insertRunLog(ctx, s.db, e); err != nil {
		if isUniqueViolation(err) {
			return model.RunLogEntry{}, ErrDuplicateRun
		}
		return model.RunLogEntry{}, fmt.Errorf("create run log: %w", err)
	}
	return e, nil
}

// CreateNotification inserts a notification.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if err := insertNotification(ctx, s.db, n); err != nil {
		return model.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// CreateFollowUp inserts a follow-up.
func (s *Store) CreateFollowUp(ctx context.Context, f model.FollowUp) (model.FollowUp, error) {
	if err := insertFollowUp(ctx, s.db, f); err != nil {
		return model.FollowUp{}, fmt.Errorf("create follow-up: %w", err)
	}
	return f, nil
}

// CommitRun atomically claims the (rule, lead) pair and writes its side effect.
//
// Returns:
//   - inserted: true if this call created the entry and committed the effect,
//     false if an entry already existed (nothing is written)
//   - error: any error that occurred; on error nothing is committed
//
// This is the crash-safe variant of the non-atomic sequence:
// FindRunLog → CreateNotification/CreateFollowUp → CreateRunLog
func (s *Store) CommitRun(ctx context.Context, e model.RunLogEntry, effect model.Effect) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("commit run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Step 1: Claim the pair via the unique constraint
	result, err := tx.ExecContext(ctx, `
		INSERT INTO run_log
		(id, rule_id, lead_id, action, result, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id, lead_id) DO NOTHING
	`,
		e.ID,
		e.RuleID,
		e.LeadID,
		string(e.Action),
		string(e.Result),
		e.Detail,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("commit run: insert run log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already claimed - the side effect belongs to the earlier run
		return false, nil
	}

	// Step 2: Side effect
	if effect.Notification != nil {
		if err := insertNotification(ctx, tx, *effect.Notification); err != nil {
			return false, fmt.Errorf("commit run: write notification: %w", err)
		}
	}
	if effect.FollowUp != nil {
		if err := insertFollowUp(ctx, tx, *effect.FollowUp); err != nil {
			return false, fmt.Errorf("commit run: write follow-up: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit run: commit: %w", err)
	}

	return true, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRunLog(ctx context.Context, ex execer, e model.RunLogEntry) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO run_log
		(id, rule_id, lead_id, action, result, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RuleID,
		e.LeadID,
		string(e.Action),
		string(e.Result),
		e.Detail,
		formatTime(e.CreatedAt),
	)
	return err
}

func insertNotification(ctx context.Context, ex execer, n model.Notification) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO notifications
		(id, user_id, type, title, message, link, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.Link,
		boolToInt(n.Read),
		formatTime(n.CreatedAt),
	)
	return err
}

func insertFollowUp(ctx context.Context, ex execer, f model.FollowUp) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO follow_ups
		(id, lead_id, assigned_to, scheduled_at, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		f.ID,
		f.LeadID,
		f.AssignedTo,
		formatTime(f.ScheduledAt),
		f.Note,
		formatTime(f.CreatedAt),
	)
	return err
}
