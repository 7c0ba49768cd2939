package repositories

import (
	"context"

	"github.com/gatekeep-app/gatekeep/internal/db"
	"github.com/gatekeep-app/gatekeep/internal/models"
)

type statsRepository struct {
	db *db.DB
}

func NewStatsRepository(database *db.DB) StatsRepository {
	return &statsRepository{db: database}
}

type statusCountRow struct {
	Status string
	N      int64
}

func (r *statsRepository) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	var rows []statusCountRow
	err := r.db.WithContext(ctx).Model(&models.Action{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(models.StatusCounts, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

type typeStatusRow struct {
	ActionType string
	Status     string
	N          int64
}

func (r *statsRepository) TypeBreakdown(ctx context.Context) ([]*models.TypeBreakdown, error) {
	var rows []typeStatusRow
	err := r.db.WithContext(ctx).Model(&models.Action{}).
		Select("action_type, status, COUNT(*) AS n").
		Group("action_type, status").
		Order("action_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byType := make(map[string]*models.TypeBreakdown)
	var out []*models.TypeBreakdown
	for _, row := range rows {
		tb, ok := byType[row.ActionType]
		if !ok {
			tb = &models.TypeBreakdown{ActionType: row.ActionType}
			byType[row.ActionType] = tb
			out = append(out, tb)
		}
		tb.Total += row.N
		switch row.Status {
		case models.StatusPending:
			tb.Pending = row.N
		case models.StatusApproved:
			tb.Approved = row.N
		case models.StatusDenied:
			tb.Denied = row.N
		case models.StatusAutoApproved:
			tb.AutoApproved = row.N
		case models.StatusEdited:
			tb.Edited = row.N
		}
	}
	return out, nil
}

func (r *statsRepository) AverageConfidence(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&models.Action{}).
		Select("AVG(confidence)").
		Where("confidence IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
