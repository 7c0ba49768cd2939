package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatekeep-app/gatekeep/internal/errors"
	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/repositories"
)

type actionService struct {
	repo   repositories.ActionRepository
	rules  RuleService
	logger *zap.Logger
}

func NewActionService(repo repositories.ActionRepository, rules RuleService, logger *zap.Logger) ActionService {
	return &actionService{repo: repo, rules: rules, logger: logger}
}

// Create persists a new proposal in pending state. No rule matching happens
// here; evaluation is a deliberate separate call.
func (s *actionService) Create(ctx context.Context, a *models.Action) error {
	if !models.ValidActionType(a.ActionType) {
		return &errors.ErrValidation{Field: "action_type", Message: "unknown action type"}
	}
	if !models.ValidRiskLevel(a.RiskLevel) {
		return &errors.ErrValidation{Field: "risk_level", Message: "must be one of low, medium, high"}
	}
	if err := requireJSONObject("action_data", a.ActionData); err != nil {
		return err
	}
	if len(a.ContextData) > 0 && !json.Valid(a.ContextData) {
		return &errors.ErrValidation{Field: "context_data", Message: "must be valid JSON"}
	}
	if a.Confidence != nil && (*a.Confidence < 0 || *a.Confidence > 1) {
		return &errors.ErrValidation{Field: "confidence", Message: "must be between 0 and 1"}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = models.StatusPending
	a.UserFeedback = nil
	a.EditedData = nil
	a.ReviewedAt = nil
	a.ExecutedAt = nil
	if a.GeneratedAt.IsZero() {
		a.GeneratedAt = time.Now()
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.logger.Info("action created",
		zap.String("id", a.ID),
		zap.String("action_type", a.ActionType),
		zap.String("risk_level", a.RiskLevel))
	return nil
}

func (s *actionService) Get(ctx context.Context, id string) (*models.Action, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &errors.ErrNotFound{Entity: "action", ID: id}
	}
	return a, nil
}

func (s *actionService) List(ctx context.Context, filter *models.ActionFilter) ([]*models.Action, int64, error) {
	if filter != nil {
		if filter.Status != "" && !models.ValidStatus(filter.Status) {
			return nil, 0, &errors.ErrValidation{Field: "status", Message: "unknown status"}
		}
		if filter.ActionType != "" && !models.ValidActionType(filter.ActionType) {
			return nil, 0, &errors.ErrValidation{Field: "action_type", Message: "unknown action type"}
		}
		if filter.RiskLevel != "" && !models.ValidRiskLevel(filter.RiskLevel) {
			return nil, 0, &errors.ErrValidation{Field: "risk_level", Message: "unknown risk level"}
		}
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *actionService) Approve(ctx context.Context, id string) (*models.Action, error) {
	return s.decide(ctx, id, "approve", map[string]interface{}{
		"status":      models.StatusApproved,
		"reviewed_at": time.Now(),
	})
}

func (s *actionService) Deny(ctx context.Context, id, feedback string) (*models.Action, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, &errors.ErrValidation{Field: "feedback", Message: "is required when denying"}
	}
	return s.decide(ctx, id, "deny", map[string]interface{}{
		"status":        models.StatusDenied,
		"user_feedback": feedback,
		"reviewed_at":   time.Now(),
	})
}

// Edit is a terminal decision: the edited payload is what the executor should
// run, and the edited status itself represents approval-with-modification.
func (s *actionService) Edit(ctx context.Context, id string, editedData json.RawMessage) (*models.Action, error) {
	if err := requireJSONObject("edited_data", editedData); err != nil {
		return nil, err
	}
	return s.decide(ctx, id, "edit", map[string]interface{}{
		"status":      models.StatusEdited,
		"edited_data": []byte(editedData),
		"reviewed_at": time.Now(),
	})
}

// TryAutoApprove runs the matcher over the enabled, trusted rules for the
// action's type. Calling it on an already-decided action fails with an
// invalid-state error rather than silently overwriting the decision. The
// status transition and the rule's trigger increment land in one repository
// transaction: on any failure the action stays pending and no trigger is
// recorded.
func (s *actionService) TryAutoApprove(ctx context.Context, id string) (*models.AutoApprovalResult, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsPending() {
		return nil, &errors.ErrInvalidState{ID: id, Status: a.Status, Op: "auto-approve", Expected: models.StatusPending}
	}

	rule, err := s.rules.FindMatch(ctx, a)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return &models.AutoApprovalResult{Matched: false, Action: a}, nil
	}

	applied, err := s.repo.AutoApprove(ctx, id, rule.ID, time.Now())
	if err != nil {
		s.logger.Error("auto-approval rolled back",
			zap.String("id", id),
			zap.String("rule_id", rule.ID),
			zap.Error(err))
		return nil, err
	}
	if !applied {
		// Lost the race: some other decision moved the action out of
		// pending between our read and this write.
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, &errors.ErrNotFound{Entity: "action", ID: id}
		}
		return nil, &errors.ErrInvalidState{ID: id, Status: current.Status, Op: "auto-approve", Expected: models.StatusPending}
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("action auto-approved",
		zap.String("id", id),
		zap.String("rule_id", rule.ID))
	return &models.AutoApprovalResult{Matched: true, RuleID: rule.ID, Action: updated}, nil
}

// PreviewMatches evaluates every enabled rule of the action's type, including
// rules on probation, flagging whether each would actually be applied.
func (s *actionService) PreviewMatches(ctx context.Context, id string) ([]*models.RuleMatch, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	surface, err := a.MatchSurface()
	if err != nil {
		return nil, &errors.ErrValidation{Field: "action_data", Message: "payload is not a JSON object"}
	}
	enabled := true
	rules, err := s.rules.List(ctx, &models.RuleFilter{ActionType: a.ActionType, Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	matches := make([]*models.RuleMatch, 0, len(rules))
	for _, rule := range rules {
		matched := rule.MatchesData(surface)
		matches = append(matches, &models.RuleMatch{
			Rule:     rule,
			Matched:  matched,
			Eligible: matched && !rule.OnProbation(),
		})
	}
	return matches, nil
}

// RuleDraft derives an equals-condition scaffold from the action's payload so
// a reviewer can turn an approval into a rule without writing predicates by
// hand. Only scalar top-level fields are included.
func (s *actionService) RuleDraft(ctx context.Context, id string) (*models.RuleDraft, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	surface, err := a.MatchSurface()
	if err != nil {
		return nil, &errors.ErrValidation{Field: "action_data", Message: "payload is not a JSON object"}
	}

	fields := make([]string, 0, len(surface))
	for k, v := range surface {
		switch v.(type) {
		case string, float64, bool:
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	conditions := make([]models.Condition, 0, len(fields))
	for _, k := range fields {
		conditions = append(conditions, models.Condition{Field: k, Operator: models.OpEquals, Value: surface[k]})
	}
	return &models.RuleDraft{ActionType: a.ActionType, Conditions: conditions}, nil
}

// decide guards the transition on the current status before attempting it, so
// the common error paths report precisely; applyDecision then relies on the
// conditional update for correctness under races.
func (s *actionService) decide(ctx context.Context, id, op string, updates map[string]interface{}) (*models.Action, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsPending() {
		return nil, &errors.ErrInvalidState{ID: id, Status: a.Status, Op: op, Expected: models.StatusPending}
	}
	return s.applyDecision(ctx, id, op, updates)
}

func (s *actionService) applyDecision(ctx context.Context, id, op string, updates map[string]interface{}) (*models.Action, error) {
	ok, err := s.repo.Decide(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: some other decision moved the action out of
		// pending between our read and this write.
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, &errors.ErrNotFound{Entity: "action", ID: id}
		}
		return nil, &errors.ErrInvalidState{ID: id, Status: current.Status, Op: op, Expected: models.StatusPending}
	}
	return s.Get(ctx, id)
}

func requireJSONObject(field string, raw []byte) error {
	if len(raw) == 0 {
		return &errors.ErrValidation{Field: field, Message: "is required"}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return &errors.ErrValidation{Field: field, Message: "must be a JSON object"}
	}
	return nil
}
