package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gatekeep-app/gatekeep/internal/errors"
)

// TrustThreshold is the minimum success rate a scored rule needs to stay
// eligible for auto-approval. A rule below it is "on probation": still listed
// and previewable, never applied.
var TrustThreshold = decimal.NewFromFloat(0.8)

// ConditionList stores a rule's conditions as a jsonb column.
type ConditionList []Condition

// Value implements driver.Valuer.
func (l ConditionList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ConditionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("cannot scan %T into ConditionList", src)
}

// AutoApproveRule grants auto-approval to actions of one type when every
// condition holds and the rule's trust clears the threshold. Rules are created
// by humans only; the engine mutates nothing but the trigger counter and
// success rate.
type AutoApproveRule struct {
	ID             string           `json:"id" gorm:"primaryKey;column:id;type:varchar(255)"`
	ActionType     string           `json:"action_type" gorm:"column:action_type;type:varchar(50);not null;index"`
	Conditions     ConditionList    `json:"conditions" gorm:"column:conditions;type:jsonb;not null"`
	Enabled        bool             `json:"enabled" gorm:"column:enabled;not null;default:true;index"`
	TimesTriggered int64            `json:"times_triggered" gorm:"column:times_triggered;not null;default:0"`
	SuccessRate    *decimal.Decimal `json:"success_rate,omitempty" gorm:"column:success_rate;type:decimal(10,5)"`
	CreatedAt      time.Time        `json:"created_at" gorm:"column:created_at;type:timestamptz;autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"column:updated_at;type:timestamptz;autoUpdateTime"`
}

func (AutoApproveRule) TableName() string { return "auto_approve_rules" }

// Validate checks the rule is usable: a known action type and at least one
// structurally valid condition.
func (r *AutoApproveRule) Validate() error {
	if !ValidActionType(r.ActionType) {
		return &errors.ErrValidation{Field: "action_type", Message: fmt.Sprintf("unknown action type %q", r.ActionType)}
	}
	if len(r.Conditions) == 0 {
		return &errors.ErrValidation{Field: "conditions", Message: "a rule must have at least one condition"}
	}
	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return &errors.ErrValidation{
				Field:   fmt.Sprintf("conditions[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// OnProbation reports whether the rule has been scored below the trust
// threshold. An unscored rule is not on probation.
func (r *AutoApproveRule) OnProbation() bool {
	return r.SuccessRate != nil && r.SuccessRate.LessThan(TrustThreshold)
}

// MatchesData reports whether every condition holds against the payload.
// A rule with no conditions never matches.
func (r *AutoApproveRule) MatchesData(data map[string]interface{}) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !c.Matches(data) {
			return false
		}
	}
	return true
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	ActionType string `json:"action_type,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// RuleMatch is a preview row: whether a rule's conditions hold for an action
// and whether the rule would actually be applied (probation rules match but
// are not eligible).
type RuleMatch struct {
	Rule     *AutoApproveRule `json:"rule"`
	Matched  bool             `json:"matched"`
	Eligible bool             `json:"eligible"`
}

// RuleDraft is an equals-condition scaffold derived from an action, for the
// "create a rule from this approval" flow. The caller edits and submits it.
type RuleDraft struct {
	ActionType string      `json:"action_type"`
	Conditions []Condition `json:"conditions"`
}

// AutoApprovalResult reports the outcome of evaluating one action against the
// rule set.
type AutoApprovalResult struct {
	Matched bool    `json:"matched"`
	RuleID  string  `json:"rule_id,omitempty"`
	Action  *Action `json:"action"`
}
