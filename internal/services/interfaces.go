package services

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/gatekeep-app/gatekeep/internal/models"
)

// ActionService owns the queue lifecycle of proposed actions: creation,
// listing, manual decisions and auto-approval evaluation.
type ActionService interface {
	Create(ctx context.Context, a *models.Action) error
	Get(ctx context.Context, id string) (*models.Action, error)
	List(ctx context.Context, filter *models.ActionFilter) ([]*models.Action, int64, error)
	Approve(ctx context.Context, id string) (*models.Action, error)
	Deny(ctx context.Context, id, feedback string) (*models.Action, error)
	Edit(ctx context.Context, id string, editedData json.RawMessage) (*models.Action, error)
	TryAutoApprove(ctx context.Context, id string) (*models.AutoApprovalResult, error)
	PreviewMatches(ctx context.Context, id string) ([]*models.RuleMatch, error)
	RuleDraft(ctx context.Context, id string) (*models.RuleDraft, error)
}

// RuleService owns rule CRUD, the matcher and the trust updater.
type RuleService interface {
	Create(ctx context.Context, rule *models.AutoApproveRule) error
	Get(ctx context.Context, id string) (*models.AutoApproveRule, error)
	List(ctx context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error)
	Toggle(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
	// FindMatch returns the first eligible rule whose conditions all hold
	// for the action, or nil when the action needs human review. Recording
	// the trigger is the applier's job, inside the same transaction as the
	// status change.
	FindMatch(ctx context.Context, action *models.Action) (*models.AutoApproveRule, error)
	// RecordOutcome feeds the trust loop. What counts as "successful" is the
	// caller's contract; the convention is that an auto-approved action the
	// human did not later reverse or deny counts as a success.
	RecordOutcome(ctx context.Context, ruleID string, wasSuccessful bool) (decimal.Decimal, error)
}

// StatsService derives read-only approval metrics from the queue and rules.
type StatsService interface {
	GetStats(ctx context.Context) (*models.Stats, error)
}
