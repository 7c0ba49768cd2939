package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gatekeep-app/gatekeep/internal/errors"
	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/repositories"
)

// trustUpdateRetries bounds the compare-and-swap loop in RecordOutcome.
// Contention on a single rule is short-lived; exhausting this means something
// is hammering the rule and the caller should retry.
const trustUpdateRetries = 5

type ruleService struct {
	repo   repositories.RuleRepository
	logger *zap.Logger
}

func NewRuleService(repo repositories.RuleRepository, logger *zap.Logger) RuleService {
	return &ruleService{repo: repo, logger: logger}
}

// Create persists a human-authored rule. New rules start enabled, untriggered
// and unscored regardless of what the caller sent.
func (s *ruleService) Create(ctx context.Context, rule *models.AutoApproveRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.Enabled = true
	rule.TimesTriggered = 0
	rule.SuccessRate = nil
	if err := s.repo.Create(ctx, rule); err != nil {
		return err
	}
	s.logger.Info("rule created",
		zap.String("id", rule.ID),
		zap.String("action_type", rule.ActionType),
		zap.Int("conditions", len(rule.Conditions)))
	return nil
}

func (s *ruleService) Get(ctx context.Context, id string) (*models.AutoApproveRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, &errors.ErrNotFound{Entity: "rule", ID: id}
	}
	return rule, nil
}

func (s *ruleService) List(ctx context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error) {
	return s.repo.List(ctx, filter)
}

func (s *ruleService) Toggle(ctx context.Context, id string, enabled bool) error {
	ok, err := s.repo.SetEnabled(ctx, id, enabled)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.ErrNotFound{Entity: "rule", ID: id}
	}
	return nil
}

func (s *ruleService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.ErrNotFound{Entity: "rule", ID: id}
	}
	return nil
}

// FindMatch returns the first enabled, trusted rule of the action's type whose
// conditions all hold against the action's match surface. Creation order is
// the priority between overlapping rules; no match is the normal path for
// actions that need human review.
func (s *ruleService) FindMatch(ctx context.Context, action *models.Action) (*models.AutoApproveRule, error) {
	surface, err := action.MatchSurface()
	if err != nil {
		return nil, &errors.ErrValidation{Field: "action_data", Message: "payload is not a JSON object"}
	}
	enabled := true
	rules, err := s.repo.List(ctx, &models.RuleFilter{ActionType: action.ActionType, Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if rule.OnProbation() {
			continue
		}
		if rule.MatchesData(surface) {
			return rule, nil
		}
	}
	return nil, nil
}

// RecordOutcome folds one externally-judged outcome into the rule's running
// success rate. The first scoring of an unscored rule yields 1.0 or 0.0;
// afterwards the rate is the running average weighted by the trigger counter,
// and the counter advances in the same guarded write so the two fields never
// diverge.
func (s *ruleService) RecordOutcome(ctx context.Context, ruleID string, wasSuccessful bool) (decimal.Decimal, error) {
	for attempt := 0; attempt < trustUpdateRetries; attempt++ {
		rule, err := s.Get(ctx, ruleID)
		if err != nil {
			return decimal.Zero, err
		}
		if rule.SuccessRate != nil && rule.TimesTriggered == 0 {
			intErr := &errors.ErrIntegrity{
				Entity:  "rule",
				ID:      ruleID,
				Message: "success rate defined with zero triggers",
			}
			s.logger.Error("trust counters diverged", zap.String("rule_id", ruleID), zap.Error(intErr))
			return decimal.Zero, intErr
		}

		newRate := scoreOutcome(rule, wasSuccessful)
		ok, err := s.repo.CompareAndSetTrust(ctx, ruleID, rule.TimesTriggered, newRate)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			s.logger.Info("rule outcome recorded",
				zap.String("rule_id", ruleID),
				zap.Bool("successful", wasSuccessful),
				zap.String("success_rate", newRate.String()))
			return newRate, nil
		}
		// Counter moved under us; re-read and recompute.
	}
	return decimal.Zero, fmt.Errorf("recording outcome for rule %s: retries exhausted under contention", ruleID)
}

func scoreOutcome(rule *models.AutoApproveRule, wasSuccessful bool) decimal.Decimal {
	score := decimal.Zero
	if wasSuccessful {
		score = decimal.NewFromInt(1)
	}
	if rule.SuccessRate == nil {
		return score
	}
	n := decimal.NewFromInt(rule.TimesTriggered)
	return rule.SuccessRate.Mul(n).Add(score).Div(n.Add(decimal.NewFromInt(1)))
}
