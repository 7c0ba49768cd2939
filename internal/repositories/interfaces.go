package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gatekeep-app/gatekeep/internal/models"
)

// ActionRepository defines persistence for proposed actions. Decide is the
// only mutation that moves an action out of pending and it is conditional on
// the row still being pending, so concurrent decisions on the same id resolve
// to exactly one winner.
type ActionRepository interface {
	Create(ctx context.Context, a *models.Action) error
	GetByID(ctx context.Context, id string) (*models.Action, error)
	List(ctx context.Context, filter *models.ActionFilter) ([]*models.Action, error)
	Count(ctx context.Context, filter *models.ActionFilter) (int64, error)
	// Decide applies updates to the action iff it is still pending. The
	// boolean reports whether a row was updated.
	Decide(ctx context.Context, id string, updates map[string]interface{}) (bool, error)
	// AutoApprove moves a pending action to auto_approved and advances the
	// matched rule's trigger counter in one transaction, so a failure on
	// either write leaves both records untouched. The boolean reports whether
	// the action was still pending.
	AutoApprove(ctx context.Context, actionID, ruleID string, reviewedAt time.Time) (bool, error)
}

// RuleRepository defines persistence for auto-approve rules. The trigger
// counter is only advanced inside ActionRepository.AutoApprove and by
// CompareAndSetTrust, which applies only when the counter still has the value
// the caller read, serializing read-modify-write per rule id.
type RuleRepository interface {
	Create(ctx context.Context, r *models.AutoApproveRule) error
	GetByID(ctx context.Context, id string) (*models.AutoApproveRule, error)
	List(ctx context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	CompareAndSetTrust(ctx context.Context, id string, seenTriggered int64, rate decimal.Decimal) (bool, error)
}

// StatsRepository defines the read-only aggregate queries behind GetStats.
type StatsRepository interface {
	StatusCounts(ctx context.Context) (models.StatusCounts, error)
	TypeBreakdown(ctx context.Context) ([]*models.TypeBreakdown, error)
	AverageConfidence(ctx context.Context) (float64, error)
}
