package handlers

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/services"
)

// Stub services returning canned values, so handler tests only exercise
// routing, decoding and the error-to-status mapping.

type stubActionService struct {
	action  *models.Action
	actions []*models.Action
	total   int64
	result  *models.AutoApprovalResult
	matches []*models.RuleMatch
	draft   *models.RuleDraft
	err     error

	lastFeedback string
	lastEdited   json.RawMessage
}

func (s *stubActionService) Create(_ context.Context, a *models.Action) error {
	if s.err != nil {
		return s.err
	}
	a.ID = "generated"
	a.Status = models.StatusPending
	return nil
}

func (s *stubActionService) Get(_ context.Context, id string) (*models.Action, error) {
	return s.action, s.err
}

func (s *stubActionService) List(_ context.Context, filter *models.ActionFilter) ([]*models.Action, int64, error) {
	return s.actions, s.total, s.err
}

func (s *stubActionService) Approve(_ context.Context, id string) (*models.Action, error) {
	return s.action, s.err
}

func (s *stubActionService) Deny(_ context.Context, id, feedback string) (*models.Action, error) {
	s.lastFeedback = feedback
	return s.action, s.err
}

func (s *stubActionService) Edit(_ context.Context, id string, editedData json.RawMessage) (*models.Action, error) {
	s.lastEdited = editedData
	return s.action, s.err
}

func (s *stubActionService) TryAutoApprove(_ context.Context, id string) (*models.AutoApprovalResult, error) {
	return s.result, s.err
}

func (s *stubActionService) PreviewMatches(_ context.Context, id string) ([]*models.RuleMatch, error) {
	return s.matches, s.err
}

func (s *stubActionService) RuleDraft(_ context.Context, id string) (*models.RuleDraft, error) {
	return s.draft, s.err
}

type stubRuleService struct {
	rule  *models.AutoApproveRule
	rules []*models.AutoApproveRule
	rate  decimal.Decimal
	err   error

	lastEnabled    *bool
	lastSuccessful *bool
}

func (s *stubRuleService) Create(_ context.Context, rule *models.AutoApproveRule) error {
	if s.err != nil {
		return s.err
	}
	rule.ID = "generated"
	rule.Enabled = true
	return nil
}

func (s *stubRuleService) Get(_ context.Context, id string) (*models.AutoApproveRule, error) {
	return s.rule, s.err
}

func (s *stubRuleService) List(_ context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error) {
	return s.rules, s.err
}

func (s *stubRuleService) Toggle(_ context.Context, id string, enabled bool) error {
	s.lastEnabled = &enabled
	return s.err
}

func (s *stubRuleService) Delete(_ context.Context, id string) error { return s.err }

func (s *stubRuleService) FindMatch(_ context.Context, action *models.Action) (*models.AutoApproveRule, error) {
	return s.rule, s.err
}

func (s *stubRuleService) RecordOutcome(_ context.Context, ruleID string, wasSuccessful bool) (decimal.Decimal, error) {
	s.lastSuccessful = &wasSuccessful
	return s.rate, s.err
}

type stubStatsService struct {
	stats *models.Stats
	err   error
}

func (s *stubStatsService) GetStats(_ context.Context) (*models.Stats, error) {
	return s.stats, s.err
}

var _ services.ActionService = (*stubActionService)(nil)
var _ services.RuleService = (*stubRuleService)(nil)
var _ services.StatsService = (*stubStatsService)(nil)
