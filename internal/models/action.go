package models

import (
	"encoding/json"
	"time"
)

// Action types an agent may propose
const (
	ActionTypeEmailReply    = "email_reply"
	ActionTypeCalendarBlock = "calendar_block"
	ActionTypeMessageSend   = "message_send"
	ActionTypeTaskCreate    = "task_create"
	ActionTypeRecordUpdate  = "record_update"
)

// Risk levels assigned by the proposer at creation time
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Action statuses. Pending is the only non-terminal state.
const (
	StatusPending      = "pending"
	StatusApproved     = "approved"
	StatusDenied       = "denied"
	StatusAutoApproved = "auto_approved"
	StatusEdited       = "edited"
)

// Action represents an agent-proposed side effect awaiting or having received a review decision
type Action struct {
	ID           string     `json:"id" gorm:"primaryKey;column:id;type:varchar(255)"`
	ActionType   string     `json:"action_type" gorm:"column:action_type;type:varchar(50);not null;index"`
	RiskLevel    string     `json:"risk_level" gorm:"column:risk_level;type:varchar(20);not null;index"`
	Status       string     `json:"status" gorm:"column:status;type:varchar(20);not null;default:'pending';index"`
	ActionData   []byte     `json:"action_data" gorm:"column:action_data;type:jsonb;not null"`
	ContextData  []byte     `json:"context_data,omitempty" gorm:"column:context_data;type:jsonb"`
	Confidence   *float64   `json:"confidence,omitempty" gorm:"column:confidence;type:decimal(10,5)"`
	UserFeedback *string    `json:"user_feedback,omitempty" gorm:"column:user_feedback;type:text"`
	EditedData   []byte     `json:"edited_data,omitempty" gorm:"column:edited_data;type:jsonb"`
	GeneratedAt  time.Time  `json:"generated_at" gorm:"column:generated_at;type:timestamptz;autoCreateTime"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty" gorm:"column:reviewed_at;type:timestamptz"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty" gorm:"column:executed_at;type:timestamptz"`
}

func (Action) TableName() string { return "actions" }

// IsPending reports whether the action is still awaiting a decision.
func (a *Action) IsPending() bool { return a.Status == StatusPending }

// MatchSurface returns the payload the rule matcher inspects: the edited
// payload when a human has modified the action, the proposed payload otherwise.
func (a *Action) MatchSurface() (map[string]interface{}, error) {
	raw := a.ActionData
	if len(a.EditedData) > 0 {
		raw = a.EditedData
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidActionType reports whether t is one of the known action types.
func ValidActionType(t string) bool {
	switch t {
	case ActionTypeEmailReply, ActionTypeCalendarBlock, ActionTypeMessageSend,
		ActionTypeTaskCreate, ActionTypeRecordUpdate:
		return true
	}
	return false
}

// ValidRiskLevel reports whether r is one of low, medium, high.
func ValidRiskLevel(r string) bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// ValidStatus reports whether s is a known queue status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusAutoApproved, StatusEdited:
		return true
	}
	return false
}

// ActionFilter narrows action listings. Zero values mean "no filter".
type ActionFilter struct {
	Status     string `json:"status,omitempty"`
	ActionType string `json:"action_type,omitempty"`
	RiskLevel  string `json:"risk_level,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
