package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/repositories"
)

// ---- Mocks for repositories and services used in unit tests ----

type mockActionRepo struct {
	mu    sync.Mutex
	items map[string]*models.Action
	// raceWinner simulates a concurrent decision: Decide reports zero rows
	// and the action lands in this status instead.
	raceWinner string
	// triggerErr makes AutoApprove fail as if the rule write broke; like the
	// real transaction, the action must then stay pending.
	triggerErr error
	// triggeredRules records the rule ids AutoApprove committed.
	triggeredRules []string
}

func newMockActionRepo() *mockActionRepo {
	return &mockActionRepo{items: map[string]*models.Action{}}
}

func (m *mockActionRepo) Create(_ context.Context, a *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a
	return nil
}

func (m *mockActionRepo) GetByID(_ context.Context, id string) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id], nil
}

func (m *mockActionRepo) List(_ context.Context, filter *models.ActionFilter) ([]*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Action
	for _, a := range m.items {
		if matchesFilter(a, filter) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockActionRepo) Count(ctx context.Context, filter *models.ActionFilter) (int64, error) {
	list, _ := m.List(ctx, filter)
	return int64(len(list)), nil
}

func (m *mockActionRepo) Decide(_ context.Context, id string, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.Status != models.StatusPending {
		return false, nil
	}
	if m.raceWinner != "" {
		now := time.Now()
		a.Status = m.raceWinner
		a.ReviewedAt = &now
		return false, nil
	}
	if v, ok := updates["status"]; ok {
		a.Status = v.(string)
	}
	if v, ok := updates["reviewed_at"]; ok {
		t := v.(time.Time)
		a.ReviewedAt = &t
	}
	if v, ok := updates["user_feedback"]; ok {
		s := v.(string)
		a.UserFeedback = &s
	}
	if v, ok := updates["edited_data"]; ok {
		a.EditedData = v.([]byte)
	}
	return true, nil
}

func (m *mockActionRepo) AutoApprove(_ context.Context, actionID, ruleID string, reviewedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[actionID]
	if !ok || a.Status != models.StatusPending {
		return false, nil
	}
	if m.raceWinner != "" {
		now := time.Now()
		a.Status = m.raceWinner
		a.ReviewedAt = &now
		return false, nil
	}
	if m.triggerErr != nil {
		return false, m.triggerErr
	}
	a.Status = models.StatusAutoApproved
	a.ReviewedAt = &reviewedAt
	m.triggeredRules = append(m.triggeredRules, ruleID)
	return true, nil
}

func matchesFilter(a *models.Action, filter *models.ActionFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Status != "" && a.Status != filter.Status {
		return false
	}
	if filter.ActionType != "" && a.ActionType != filter.ActionType {
		return false
	}
	if filter.RiskLevel != "" && a.RiskLevel != filter.RiskLevel {
		return false
	}
	return true
}

type mockRuleRepo struct {
	mu    sync.Mutex
	items map[string]*models.AutoApproveRule
	order []string
	// casMisses makes the next n CompareAndSetTrust calls report a lost
	// race without changing state, to exercise the retry loop.
	casMisses int
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{items: map[string]*models.AutoApproveRule{}}
}

func (m *mockRuleRepo) Create(_ context.Context, r *models.AutoApproveRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockRuleRepo) GetByID(_ context.Context, id string) (*models.AutoApproveRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id], nil
}

func (m *mockRuleRepo) List(_ context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AutoApproveRule
	for _, id := range m.order {
		r, ok := m.items[id]
		if !ok {
			continue
		}
		if filter != nil {
			if filter.ActionType != "" && r.ActionType != filter.ActionType {
				continue
			}
			if filter.Enabled != nil && r.Enabled != *filter.Enabled {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRuleRepo) SetEnabled(_ context.Context, id string, enabled bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return false, nil
	}
	r.Enabled = enabled
	return true, nil
}

func (m *mockRuleRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *mockRuleRepo) CompareAndSetTrust(_ context.Context, id string, seenTriggered int64, rate decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || r.TimesTriggered != seenTriggered {
		return false, nil
	}
	if m.casMisses > 0 {
		m.casMisses--
		return false, nil
	}
	r.SuccessRate = &rate
	r.TimesTriggered = seenTriggered + 1
	return true, nil
}

type mockRuleService struct {
	match    *models.AutoApproveRule
	matchErr error
	listed   []*models.AutoApproveRule
}

func (m *mockRuleService) Create(_ context.Context, rule *models.AutoApproveRule) error { return nil }
func (m *mockRuleService) Get(_ context.Context, id string) (*models.AutoApproveRule, error) {
	return nil, nil
}
func (m *mockRuleService) List(_ context.Context, filter *models.RuleFilter) ([]*models.AutoApproveRule, error) {
	return m.listed, nil
}
func (m *mockRuleService) Toggle(_ context.Context, id string, enabled bool) error { return nil }
func (m *mockRuleService) Delete(_ context.Context, id string) error               { return nil }
func (m *mockRuleService) FindMatch(_ context.Context, action *models.Action) (*models.AutoApproveRule, error) {
	return m.match, m.matchErr
}
func (m *mockRuleService) RecordOutcome(_ context.Context, ruleID string, wasSuccessful bool) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type mockStatsRepo struct {
	counts    models.StatusCounts
	breakdown []*models.TypeBreakdown
	avg       float64
}

func (m *mockStatsRepo) StatusCounts(_ context.Context) (models.StatusCounts, error) {
	return m.counts, nil
}
func (m *mockStatsRepo) TypeBreakdown(_ context.Context) ([]*models.TypeBreakdown, error) {
	return m.breakdown, nil
}
func (m *mockStatsRepo) AverageConfidence(_ context.Context) (float64, error) {
	return m.avg, nil
}

func decimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

// compile-time checks that mocks satisfy interfaces
var _ repositories.ActionRepository = (*mockActionRepo)(nil)
var _ repositories.RuleRepository = (*mockRuleRepo)(nil)
var _ repositories.StatsRepository = (*mockStatsRepo)(nil)
var _ RuleService = (*mockRuleService)(nil)
