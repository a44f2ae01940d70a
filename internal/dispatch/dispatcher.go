// Package dispatch performs a rule's side effect for one matched lead.
//
// The dispatcher is the idempotency gate of the engine: every (rule, lead)
// pair produces at most one run-log entry and at most one side effect, no
// matter how many cycles re-match the pair. The check is done twice:
//
//  1. FindRunLog short-circuits pairs that already ran (cheap, no effects)
//  2. Store.CommitRun claims the pair with an insert-if-absent and writes the
//     side effect in the same transaction, so concurrent dispatches for the
//     same pair cannot both commit
//
// Execute never returns an error. Every failure is logged and reported as a
// Result with Performed=false, the error text as Detail and the error in Err.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/leadflow/internal/clock"
	"github.com/roach88/leadflow/internal/model"
)

// Fixed result details.
const (
	DetailAlreadyExecuted = "already executed"
	DetailNoUser          = "no assigned user found"
)

// Store is the subset of the entity store the dispatcher needs.
// Implemented by *store.Store.
type Store interface {
	FindRunLog(ctx context.Context, ruleID, leadID string) (model.RunLogEntry, bool, error)
	GetUser(ctx context.Context, id string) (model.User, bool, error)
	CreateRunLog(ctx context.Context, e model.RunLogEntry) (model.RunLogEntry, error)
	CommitRun(ctx context.Context, e model.RunLogEntry, effect model.Effect) (bool, error)
}

// IDGenerator mints IDs for run-log entries, notifications and follow-ups.
// Implemented by engine.UUIDv7Generator (production) and
// testutil.SequentialIDs (tests).
type IDGenerator interface {
	NewID() string
}

// Result is the outcome of one dispatch.
//
// Err is set only when the attempt failed (store error or panic); skips such
// as "already executed" or "no assigned user found" leave it nil.
type Result struct {
	Performed bool   `json:"performed"`
	Detail    string `json:"detail"`
	Err       error  `json:"-"`
}

// failed builds a failure result from err.
func failed(err error) Result {
	return Result{Detail: err.Error(), Err: err}
}

// Dispatcher executes actions for matched (rule, lead) pairs.
//
// Thread-safety: Execute may be called from multiple goroutines.
type Dispatcher struct {
	store  Store
	clock  clock.Clock
	ids    IDGenerator
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a Dispatcher.
func New(s Store, c clock.Clock, ids IDGenerator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  s,
		clock:  c,
		ids:    ids,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// plan is what a successful dispatch will commit.
type plan struct {
	detail string
	effect model.Effect
}

// Execute performs the rule's action for lead, at most once per pair.
func (d *Dispatcher) Execute(ctx context.Context, rule model.Rule, lead model.Lead) (res Result) {
	log := d.logger.With("rule_id", rule.ID, "lead_id", lead.ID, "action", string(rule.ActionKind))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during dispatch: %v", r)
			log.Error("dispatch panicked", "error", err)
			res = failed(err)
		}
	}()

	// Ledger gate first: no side effect of any kind for a pair that already ran
	_, found, err := d.store.FindRunLog(ctx, rule.ID, lead.ID)
	if err != nil {
		log.Error("run log lookup failed", "error", err)
		return failed(err)
	}
	if found {
		log.Debug("rule already executed for lead, skipping (idempotent)")
		return Result{Detail: DetailAlreadyExecuted}
	}

	action, err := rule.Action()
	if err != nil {
		log.Warn("rule has unknown action", "error", err)
		return Result{Detail: fmt.Sprintf("unknown action: %s", rule.ActionKind)}
	}

	now := d.clock.Now()

	p, skip, err := d.plan(ctx, rule, lead, action, now)
	if err != nil {
		log.Error("dispatch planning failed", "error", err)
		return failed(err)
	}
	if skip != "" {
		// Recoverable: no ledger write, a later cycle retries
		log.Info("dispatch skipped", "reason", skip)
		return Result{Detail: skip}
	}

	entry := model.RunLogEntry{
		ID:        d.ids.NewID(),
		RuleID:    rule.ID,
		LeadID:    lead.ID,
		Action:    action.Kind(),
		Result:    model.RunSuccess,
		Detail:    p.detail,
		CreatedAt: now,
	}

	inserted, err := d.store.CommitRun(ctx, entry, p.effect)
	if errors.Is(err, model.ErrDuplicateRun) {
		inserted, err = false, nil
	}
	if err != nil {
		log.Error("dispatch commit failed", "error", err)
		d.recordFailure(ctx, log, entry, err)
		return failed(err)
	}
	if !inserted {
		log.Debug("pair claimed concurrently, skipping (idempotent)")
		return Result{Detail: DetailAlreadyExecuted}
	}

	log.Info("action performed", "run_id", entry.ID, "detail", p.detail)
	return Result{Performed: true, Detail: p.detail}
}

// plan builds the entry detail and side effect for action.
// A non-empty skip reason means the action cannot run yet.
func (d *Dispatcher) plan(ctx context.Context, rule model.Rule, lead model.Lead, action model.Action, now time.Time) (p plan, skip string, err error) {
	switch act := action.(type) {
	case model.SendWhatsApp:
		link := whatsAppLink(lead.Phone, lead.Name)
		p.detail = link

		userID, err := d.resolveUser(ctx, rule, lead)
		if err != nil {
			return plan{}, "", err
		}
		if userID != "" {
			p.effect.Notification = &model.Notification{
				ID:        d.ids.NewID(),
				UserID:    userID,
				Type:      model.NotificationAutomation,
				Title:     "WhatsApp message ready",
				Message:   fmt.Sprintf("Automation %q prepared a WhatsApp message for %s.", rule.Name, displayName(lead.Name)),
				Link:      link,
				CreatedAt: now,
			}
		}
		return p, "", nil

	case model.CreateNotification:
		userID, err := d.resolveUser(ctx, rule, lead)
		if err != nil {
			return plan{}, "", err
		}
		if userID == "" {
			return plan{}, DetailNoUser, nil
		}
		p.detail = "notification sent to " + userID
		p.effect.Notification = &model.Notification{
			ID:        d.ids.NewID(),
			UserID:    userID,
			Type:      model.NotificationReminder,
			Title:     "Follow up with " + displayName(lead.Name),
			Message:   fmt.Sprintf("Automation %q: lead %s (status %s) needs attention.", rule.Name, displayName(lead.Name), lead.Status),
			Link:      "/leads/" + lead.ID,
			CreatedAt: now,
		}
		return p, "", nil

	case model.CreateFollowUp:
		// Follow-ups are assigned by id without a user lookup
		userID := lead.AssignedTo
		if userID == "" {
			userID = rule.CreatedBy
		}
		scheduled := now.Add(act.Offset)
		p.detail = "follow-up scheduled for " + scheduled.UTC().Format(time.RFC3339)
		p.effect.FollowUp = &model.FollowUp{
			ID:          d.ids.NewID(),
			LeadID:      lead.ID,
			AssignedTo:  userID,
			ScheduledAt: scheduled,
			Note:        "Auto-created by automation rule: " + rule.Name,
			CreatedAt:   now,
		}
		return p, "", nil

	default:
		return plan{}, "", fmt.Errorf("unsupported action type %T", action)
	}
}

// resolveUser returns the lead owner if it exists, else the rule creator if
// it exists, else "".
func (d *Dispatcher) resolveUser(ctx context.Context, rule model.Rule, lead model.Lead) (string, error) {
	for _, id := range []string{lead.AssignedTo, rule.CreatedBy} {
		if id == "" {
			continue
		}
		_, found, err := d.store.GetUser(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolve user %s: %w", id, err)
		}
		if found {
			return id, nil
		}
	}
	return "", nil
}

// recordFailure writes a failure entry for the audit trail. If the store is
// still failing the pair stays unclaimed and a later cycle retries it.
func (d *Dispatcher) recordFailure(ctx context.Context, log *slog.Logger, attempted model.RunLogEntry, cause error) {
	entry := attempted
	entry.ID = d.ids.NewID()
	entry.Result = model.RunFailure
	entry.Detail = cause.Error()

	if _, err := d.store.CreateRunLog(ctx, entry); err != nil {
		if errors.Is(err, model.ErrDuplicateRun) {
			return
		}
		log.Warn("failure entry not recorded, pair will be retried", "error", err)
	}
}
