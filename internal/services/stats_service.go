package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/repositories"
)

type statsService struct {
	stats  repositories.StatsRepository
	rules  repositories.RuleRepository
	logger *zap.Logger
}

func NewStatsService(stats repositories.StatsRepository, rules repositories.RuleRepository, logger *zap.Logger) StatsService {
	return &statsService{stats: stats, rules: rules, logger: logger}
}

// GetStats is a read-only projection; it never mutates the underlying records.
func (s *statsService) GetStats(ctx context.Context) (*models.Stats, error) {
	counts, err := s.stats.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	approved := counts[models.StatusApproved]
	denied := counts[models.StatusDenied]
	autoApproved := counts[models.StatusAutoApproved]
	edited := counts[models.StatusEdited]

	reviewed := approved + denied + autoApproved + edited
	stats := &models.Stats{TotalReviewed: reviewed}

	if decided := approved + autoApproved + denied; decided > 0 {
		stats.ApprovalRate = float64(approved+autoApproved) / float64(decided)
	}
	if reviewed > 0 {
		stats.AutoApproveRate = float64(autoApproved) / float64(reviewed)
	}

	avg, err := s.stats.AverageConfidence(ctx)
	if err != nil {
		return nil, err
	}
	stats.AvgConfidence = avg

	byType, err := s.stats.TypeBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	stats.ByType = byType

	rules, err := s.rules.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	stats.RuleEffectiveness = make([]*models.RuleEffectiveness, 0, len(rules))
	for _, r := range rules {
		stats.RuleEffectiveness = append(stats.RuleEffectiveness, &models.RuleEffectiveness{
			RuleID:         r.ID,
			ActionType:     r.ActionType,
			Enabled:        r.Enabled,
			TimesTriggered: r.TimesTriggered,
			SuccessRate:    r.SuccessRate,
		})
	}
	return stats, nil
}
