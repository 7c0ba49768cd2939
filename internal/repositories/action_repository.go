package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/gatekeep-app/gatekeep/internal/db"
	apperrors "github.com/gatekeep-app/gatekeep/internal/errors"
	"github.com/gatekeep-app/gatekeep/internal/models"
)

type actionRepository struct {
	db *db.DB
}

func NewActionRepository(database *db.DB) ActionRepository {
	return &actionRepository{db: database}
}

func (r *actionRepository) Create(ctx context.Context, a *models.Action) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *actionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	var a models.Action
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *actionRepository) List(ctx context.Context, filter *models.ActionFilter) ([]*models.Action, error) {
	var list []*models.Action
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Action{}), filter)
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Order("generated_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *actionRepository) Count(ctx context.Context, filter *models.ActionFilter) (int64, error) {
	var n int64
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.Action{}), filter)
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Decide is the single write path out of pending. The status guard makes the
// transition an optimistic-concurrency check: a concurrent decision that got
// there first leaves zero rows to update and the caller surfaces the conflict.
func (r *actionRepository) Decide(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AutoApprove couples the status transition with the rule's trigger increment
// in one transaction: an auto-approved action with no recorded trigger (or the
// reverse) can never be observed, even across a crash between the writes.
func (r *actionRepository) AutoApprove(ctx context.Context, actionID, ruleID string, reviewedAt time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Action{}).
			Where("id = ? AND status = ?", actionID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":      models.StatusAutoApproved,
				"reviewed_at": reviewedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the decision race; nothing to roll back.
			return nil
		}
		res = tx.Model(&models.AutoApproveRule{}).
			Where("id = ?", ruleID).
			Updates(map[string]interface{}{
				"times_triggered": gorm.Expr("times_triggered + 1"),
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Rule deleted between matching and applying; abort the approval.
			return &apperrors.ErrNotFound{Entity: "rule", ID: ruleID}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *actionRepository) applyFilter(q *gorm.DB, filter *models.ActionFilter) *gorm.DB {
	if filter == nil {
		return q
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ActionType != "" {
		q = q.Where("action_type = ?", filter.ActionType)
	}
	if filter.RiskLevel != "" {
		q = q.Where("risk_level = ?", filter.RiskLevel)
	}
	return q
}
