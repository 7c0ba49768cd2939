package models

import "github.com/shopspring/decimal"

// Stats is the read-only projection over the queue and rule store.
type Stats struct {
	TotalReviewed     int64                `json:"total_reviewed"`
	ApprovalRate      float64              `json:"approval_rate"`
	AutoApproveRate   float64              `json:"auto_approve_rate"`
	AvgConfidence     float64              `json:"avg_confidence"`
	ByType            []*TypeBreakdown     `json:"by_type"`
	RuleEffectiveness []*RuleEffectiveness `json:"rule_effectiveness"`
}

// TypeBreakdown counts actions per type and status.
type TypeBreakdown struct {
	ActionType   string `json:"action_type"`
	Total        int64  `json:"total"`
	Pending      int64  `json:"pending"`
	Approved     int64  `json:"approved"`
	Denied       int64  `json:"denied"`
	AutoApproved int64  `json:"auto_approved"`
	Edited       int64  `json:"edited"`
}

// RuleEffectiveness surfaces a rule's counters without exposing its conditions.
type RuleEffectiveness struct {
	RuleID         string           `json:"rule_id"`
	ActionType     string           `json:"action_type"`
	Enabled        bool             `json:"enabled"`
	TimesTriggered int64            `json:"times_triggered"`
	SuccessRate    *decimal.Decimal `json:"success_rate,omitempty"`
}

// StatusCounts maps status -> count, the raw input for the rates above.
type StatusCounts map[string]int64
