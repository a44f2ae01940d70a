package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/leadflow/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListActiveRules returns rules with active = true, ordered by (created_at, id).
func (s *Store) ListActiveRules(ctx context.Context) ([]model.Rule, error) {
	return listRules(ctx, s.db, true)
}

// ListRules returns every rule, active or not, ordered by (created_at, id).
func (s *Store) ListRules(ctx context.Context) ([]model.Rule, error) {
	return listRules(ctx, s.db, false)
}

// ListLeads returns the full lead population ordered by (created_at, id).
func (s *Store) ListLeads(ctx context.Context) ([]model.Lead, error) {
	return listLeads(ctx, s.db)
}

// Snapshot reads active rules and all leads inside one read transaction so
// both views come from the same database state.
func (s *Store) Snapshot(ctx context.Context) ([]model.Rule, []model.Lead, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	rules, err := listRules(ctx, tx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}

	leads, err := listLeads(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("snapshot: commit: %w", err)
	}
	return rules, leads, nil
}

// FindRunLog returns the run-log entry for a (rule, lead) pair.
// found is false when the pair has never been attempted.
func (s *Store) FindRunLog(ctx context.Context, ruleID, leadID string) (entry model.RunLogEntry, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_id, lead_id, action, result, detail, created_at
		FROM run_log
		WHERE rule_id = ? AND lead_id = ?
	`, ruleID, leadID)

	entry, err = scanRunLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunLogEntry{}, false, nil
	}
	if err != nil {
		return model.RunLogEntry{}, false, fmt.Errorf("find run log: %w", err)
	}
	return entry, true, nil
}

// GetUser returns a user by ID. found is false when no such user exists.
func (s *Store) GetUser(ctx context.Context, id string) (u model.User, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, email FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return u, true, nil
}

// RunLogFilter narrows ListRunLog. Zero values mean "no filter".
type RunLogFilter struct {
	RuleID string
	LeadID string
	Limit  int
}

// ListRunLog returns run-log entries ordered by (created_at, id).
func (s *Store) ListRunLog(ctx context.Context, f RunLogFilter) ([]model.RunLogEntry, error) {
	query := `
		SELECT id, rule_id, lead_id, action, result, detail, created_at
		FROM run_log
		WHERE (? = '' OR rule_id = ?) AND (? = '' OR lead_id = ?)
		ORDER BY created_at ASC, id COLLATE BINARY ASC`
	args := []any{f.RuleID, f.RuleID, f.LeadID, f.LeadID}
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	entries := []model.RunLogEntry{}
	for rows.Next() {
		e, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log: %w", err)
	}
	return entries, nil
}

// ListNotifications returns a user's notifications ordered by (created_at, id).
// An empty userID lists every notification.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, link, is_read, created_at
		FROM notifications
		WHERE ? = '' OR user_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var read int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// ListFollowUps returns a lead's follow-ups ordered by (scheduled_at, id).
// An empty leadID lists every follow-up.
func (s *Store) ListFollowUps(ctx context.Context, leadID string) ([]model.FollowUp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, assigned_to, scheduled_at, note, created_at
		FROM follow_ups
		WHERE ? = '' OR lead_id = ?
		ORDER BY scheduled_at ASC, id COLLATE BINARY ASC
	`, leadID, leadID)
	if err != nil {
		return nil, fmt.Errorf("query follow-ups: %w", err)
	}
	defer rows.Close()

	out := []model.FollowUp{}
	for rows.Next() {
		var f model.FollowUp
		var scheduledAt, createdAt string
		if err := rows.Scan(&f.ID, &f.LeadID, &f.AssignedTo, &scheduledAt, &f.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		if f.ScheduledAt, err = parseTime(scheduledAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow-ups: %w", err)
	}
	return out, nil
}

func listRules(ctx context.Context, q queryer, activeOnly bool) ([]model.Rule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, trigger_kind, trigger_value, action_kind, action_value, active, created_by, created_at
		FROM rules
		WHERE active = 1 OR ? = 0
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, boolToInt(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []model.Rule{}
	for rows.Next() {
		var r model.Rule
		var triggerKind, actionKind, createdAt string
		var active int
		if err := rows.Scan(
			&r.ID, &r.Name, &triggerKind, &r.TriggerValue, &actionKind, &r.ActionValue,
			&active, &r.CreatedBy, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.TriggerKind = model.TriggerKind(triggerKind)
		r.ActionKind = model.ActionKind(actionKind)
		r.Active = active != 0
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func listLeads(ctx context.Context, q queryer) ([]model.Lead, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, phone, status, stage, assigned_to, created_at, last_activity_at
		FROM leads
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		var createdAt string
		var lastActivity sql.NullString
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Phone, &l.Status, &l.Stage, &l.AssignedTo, &createdAt, &lastActivity,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if l.LastActivityAt, err = parseNullTime(lastActivity); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunLog(row rowScanner) (model.RunLogEntry, error) {
	var e model.RunLogEntry
	var action, result, createdAt string
	if err := row.Scan(&e.ID, &e.RuleID, &e.LeadID, &action, &result, &e.Detail, &createdAt); err != nil {
		return model.RunLogEntry{}, err
	}
	e.Action = model.ActionKind(action)
	e.Result = model.RunResult(result)
	t, err := parseTime(createdAt)
	if err != nil {
		return model.RunLogEntry{}, err
	}
	e.CreatedAt = t
	return e, nil
}
