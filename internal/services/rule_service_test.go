package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/gatekeep-app/gatekeep/internal/errors"
	"github.com/gatekeep-app/gatekeep/internal/models"
)

func durationUnder(minutes float64) models.ConditionList {
	return models.ConditionList{{Field: "duration_minutes", Operator: models.OpLess, Value: minutes}}
}

func TestRuleService_CreateValidation(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())

	err := svc.Create(context.Background(), &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock})
	var validation *apperrors.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("zero-condition rule: expected validation error, got %v", err)
	}

	err = svc.Create(context.Background(), &models.AutoApproveRule{
		ActionType: models.ActionTypeCalendarBlock,
		Conditions: models.ConditionList{{Field: "duration_minutes", Operator: models.Operator("approx"), Value: 30}},
	})
	if !errors.As(err, &validation) {
		t.Fatalf("unknown operator: expected validation error, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Fatal("rejected rules must not be persisted")
	}
}

func TestRuleService_CreateResetsCounters(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())

	rate := decimal.NewFromFloat(0.1)
	rule := &models.AutoApproveRule{
		ActionType:     models.ActionTypeCalendarBlock,
		Conditions:     durationUnder(60),
		Enabled:        false,
		TimesTriggered: 99,
		SuccessRate:    &rate,
	}
	if err := svc.Create(context.Background(), rule); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if rule.ID == "" {
		t.Fatal("expected generated id")
	}
	if !rule.Enabled || rule.TimesTriggered != 0 || rule.SuccessRate != nil {
		t.Fatalf("new rules must start enabled and unscored: %+v", rule)
	}
}

func TestRuleService_RecordOutcomeFirstScoring(t *testing.T) {
	for _, tc := range []struct {
		successful bool
		want       string
	}{{true, "1"}, {false, "0"}} {
		repo := newMockRuleRepo()
		svc := NewRuleService(repo, zap.NewNop())
		rule := &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Conditions: durationUnder(60)}
		if err := svc.Create(context.Background(), rule); err != nil {
			t.Fatalf("create error: %v", err)
		}

		rate, err := svc.RecordOutcome(context.Background(), rule.ID, tc.successful)
		if err != nil {
			t.Fatalf("record error: %v", err)
		}
		if rate.String() != tc.want {
			t.Fatalf("first scoring with successful=%v: want %s, got %s", tc.successful, tc.want, rate)
		}
		if repo.items[rule.ID].TimesTriggered != 1 {
			t.Fatal("scoring must advance the trigger counter in the same update")
		}
	}
}

func TestRuleService_RecordOutcomeRunningAverage(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	rule := &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Conditions: durationUnder(60)}
	if err := svc.Create(context.Background(), rule); err != nil {
		t.Fatalf("create error: %v", err)
	}

	const n = 4
	for i := 0; i < n; i++ {
		rate, err := svc.RecordOutcome(context.Background(), rule.ID, true)
		if err != nil {
			t.Fatalf("record %d error: %v", i, err)
		}
		if !rate.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("rate after %d consecutive successes should be 1.0, got %s", i+1, rate)
		}
	}

	rate, err := svc.RecordOutcome(context.Background(), rule.ID, false)
	if err != nil {
		t.Fatalf("record failure error: %v", err)
	}
	want := decimal.NewFromInt(n).Div(decimal.NewFromInt(n + 1))
	if !rate.Equal(want) {
		t.Fatalf("rate after one failure following %d successes: want %s, got %s", n, want, rate)
	}
	if repo.items[rule.ID].TimesTriggered != n+1 {
		t.Fatalf("expected %d triggers, got %d", n+1, repo.items[rule.ID].TimesTriggered)
	}
}

func TestRuleService_RecordOutcomeRetriesUnderContention(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	rule := &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Conditions: durationUnder(60)}
	if err := svc.Create(context.Background(), rule); err != nil {
		t.Fatalf("create error: %v", err)
	}
	repo.casMisses = 2

	rate, err := svc.RecordOutcome(context.Background(), rule.ID, true)
	if err != nil {
		t.Fatalf("record should succeed after retries: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected rate %s", rate)
	}
}

func TestRuleService_RecordOutcomeIntegrity(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	rate := decimal.NewFromFloat(0.7)
	repo.items["r1"] = &models.AutoApproveRule{
		ID: "r1", ActionType: models.ActionTypeCalendarBlock,
		Conditions:  durationUnder(60),
		SuccessRate: &rate, TimesTriggered: 0,
	}
	repo.order = append(repo.order, "r1")

	_, err := svc.RecordOutcome(context.Background(), "r1", true)
	var integrity *apperrors.ErrIntegrity
	if !errors.As(err, &integrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestRuleService_RecordOutcomeNotFound(t *testing.T) {
	svc := NewRuleService(newMockRuleRepo(), zap.NewNop())
	_, err := svc.RecordOutcome(context.Background(), "ghost", true)
	var notFound *apperrors.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRuleService_FindMatchScenario(t *testing.T) {
	// calendar_block of 30 minutes; rule "under an hour" at 0.9 trust matches
	action := &models.Action{
		ID:         "a1",
		ActionType: models.ActionTypeCalendarBlock,
		Status:     models.StatusPending,
		ActionData: []byte(`{"duration_minutes": 30}`),
	}

	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	trusted := decimal.NewFromFloat(0.9)
	repo.items["r1"] = &models.AutoApproveRule{
		ID: "r1", ActionType: models.ActionTypeCalendarBlock, Enabled: true,
		Conditions: durationUnder(60), SuccessRate: &trusted,
	}
	repo.order = []string{"r1"}

	match, err := svc.FindMatch(context.Background(), action)
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if match == nil || match.ID != "r1" {
		t.Fatalf("expected r1 to match, got %+v", match)
	}

	// same rule on probation no longer auto-approves
	probation := decimal.NewFromFloat(0.5)
	repo.items["r1"].SuccessRate = &probation
	match, err = svc.FindMatch(context.Background(), action)
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if match != nil {
		t.Fatalf("probation rule must not be returned, got %+v", match)
	}
}

func TestRuleService_FindMatchFiltering(t *testing.T) {
	action := &models.Action{
		ID:         "a1",
		ActionType: models.ActionTypeCalendarBlock,
		Status:     models.StatusPending,
		ActionData: []byte(`{"duration_minutes": 30}`),
	}

	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())

	add := func(id string, rule *models.AutoApproveRule) {
		rule.ID = id
		repo.items[id] = rule
		repo.order = append(repo.order, id)
	}
	add("wrong-type", &models.AutoApproveRule{ActionType: models.ActionTypeEmailReply, Enabled: true, Conditions: durationUnder(60)})
	add("disabled", &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Enabled: false, Conditions: durationUnder(60)})
	add("non-matching", &models.AutoApproveRule{
		ActionType: models.ActionTypeCalendarBlock, Enabled: true,
		Conditions: models.ConditionList{{Field: "duration_minutes", Operator: models.OpGreater, Value: float64(60)}},
	})
	add("first-match", &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Enabled: true, Conditions: durationUnder(60)})
	add("shadowed", &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Enabled: true, Conditions: durationUnder(90)})

	match, err := svc.FindMatch(context.Background(), action)
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if match == nil || match.ID != "first-match" {
		t.Fatalf("expected first matching rule in creation order, got %+v", match)
	}
}

func TestRuleService_FindMatchUsesEditedData(t *testing.T) {
	action := &models.Action{
		ID:         "a1",
		ActionType: models.ActionTypeCalendarBlock,
		Status:     models.StatusPending,
		ActionData: []byte(`{"duration_minutes": 30}`),
		EditedData: []byte(`{"duration_minutes": 120}`),
	}
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	repo.items["r1"] = &models.AutoApproveRule{
		ID: "r1", ActionType: models.ActionTypeCalendarBlock, Enabled: true, Conditions: durationUnder(60),
	}
	repo.order = []string{"r1"}

	match, err := svc.FindMatch(context.Background(), action)
	if err != nil {
		t.Fatalf("find error: %v", err)
	}
	if match != nil {
		t.Fatal("edited payload should be the match surface, so 120 minutes must not match")
	}
}

func TestRuleService_ToggleAndDelete(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewRuleService(repo, zap.NewNop())
	rule := &models.AutoApproveRule{ActionType: models.ActionTypeCalendarBlock, Conditions: durationUnder(60)}
	if err := svc.Create(context.Background(), rule); err != nil {
		t.Fatalf("create error: %v", err)
	}
	rate := decimal.NewFromFloat(0.9)
	repo.items[rule.ID].TimesTriggered = 7
	repo.items[rule.ID].SuccessRate = &rate

	if err := svc.Toggle(context.Background(), rule.ID, false); err != nil {
		t.Fatalf("toggle error: %v", err)
	}
	got := repo.items[rule.ID]
	if got.Enabled {
		t.Fatal("expected rule disabled")
	}
	if got.TimesTriggered != 7 || got.SuccessRate == nil || !got.SuccessRate.Equal(rate) {
		t.Fatal("toggle must never touch the counters")
	}

	var notFound *apperrors.ErrNotFound
	if err := svc.Toggle(context.Background(), "ghost", true); !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(context.Background(), "ghost"); !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(context.Background(), rule.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, ok := repo.items[rule.ID]; ok {
		t.Fatal("expected rule deleted")
	}
}
