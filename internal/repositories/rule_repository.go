package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gatekeep-app/gatekeep/internal/db"
	"github.com/gatekeep-app/gatekeep/internal/models"
)

type ruleRepository struct {
	db *db.DB
}

func NewRuleRepository(database *db.DB) RuleRepository {
	return &ruleRepository{db: database}
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.AutoApproveRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *ruleRepository) GetByID(ctx context.Context, id string) (*models.AutoApproveRule, error) {
	var rule models.AutoApproveRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// List returns rules in creation order. The matcher depends on this being
// stable: it is the documented priority between overlapping rules.
func (r *ruleRepository) List(ctx context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error) {
	var list []*models.AutoApproveRule
	q := r.db.WithContext(ctx).Model(&models.AutoApproveRule{})
	if filter != nil {
		if filter.ActionType != "" {
			q = q.Where("action_type = ?", filter.ActionType)
		}
		if filter.Enabled != nil {
			q = q.Where("enabled = ?", *filter.Enabled)
		}
	}
	if err := q.Order("created_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ruleRepository) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.AutoApproveRule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enabled":    enabled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.AutoApproveRule{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSetTrust writes a new success rate and advances the trigger
// counter in one statement, guarded on the counter value the caller computed
// the rate from. A concurrent update changes the counter and the guard fails,
// so the caller re-reads and retries; the rate and counter can never diverge.
func (r *ruleRepository) CompareAndSetTrust(ctx context.Context, id string, seenTriggered int64, rate decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.AutoApproveRule{}).
		Where("id = ? AND times_triggered = ?", id, seenTriggered).
		Updates(map[string]interface{}{
			"success_rate":    rate,
			"times_triggered": seenTriggered + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
