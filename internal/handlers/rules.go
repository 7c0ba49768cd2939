package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/services"
)

// RuleHandler exposes auto-approve rule management over HTTP.
type RuleHandler struct {
	service services.RuleService
}

func NewRuleHandler(service services.RuleService) *RuleHandler {
	return &RuleHandler{service: service}
}

type createRuleRequest struct {
	ActionType string             `json:"action_type"`
	Conditions []models.Condition `json:"conditions"`
}

// Create handles POST /api/rules
// @Summary Create an auto-approve rule
// @Description New rules start enabled, untriggered and unscored
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body createRuleRequest true "Rule definition"
// @Success 201 {object} models.AutoApproveRule
// @Failure 400 {object} map[string]string "Validation error"
// @Router /rules [post]
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	rule := &models.AutoApproveRule{
		ActionType: payload.ActionType,
		Conditions: payload.Conditions,
	}
	if err := h.service.Create(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// List handles GET /api/rules
// @Summary List auto-approve rules
// @Description List rules in creation order, the matcher's priority order
// @Tags rules
// @Produce json
// @Param action_type query string false "Filter by action type"
// @Param enabled query bool false "Filter by enabled flag"
// @Success 200 {object} map[string]interface{}
// @Router /rules [get]
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &models.RuleFilter{ActionType: q.Get("action_type")}
	if v := q.Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid enabled filter", http.StatusBadRequest)
			return
		}
		filter.Enabled = &enabled
	}
	rules, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// Get handles GET /api/rules/{id}
// @Summary Get one rule
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.AutoApproveRule
// @Failure 404 {object} map[string]string "Unknown id"
// @Router /rules/{id} [get]
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// Toggle handles POST /api/rules/{id}/toggle
// @Summary Enable or disable a rule
// @Description Toggling never touches the rule's counters
// @Tags rules
// @Accept json
// @Param id path string true "Rule ID"
// @Success 204 {string} string "No Content"
// @Failure 400 {string} string "enabled is required"
// @Failure 404 {object} map[string]string "Unknown id"
// @Router /rules/{id}/toggle [post]
func (h *RuleHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	if err := h.service.Toggle(r.Context(), mux.Vars(r)["id"], *payload.Enabled); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/rules/{id}
// @Summary Delete a rule
// @Tags rules
// @Param id path string true "Rule ID"
// @Success 204 {string} string "No Content"
// @Failure 404 {object} map[string]string "Unknown id"
// @Router /rules/{id} [delete]
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordOutcome handles POST /api/rules/{id}/outcome
// @Summary Record an execution outcome for a rule
// @Description Fold one success or failure into the rule's running success rate
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {string} string "successful is required"
// @Failure 404 {object} map[string]string "Unknown id"
// @Router /rules/{id}/outcome [post]
func (h *RuleHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Successful *bool `json:"successful"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Successful == nil {
		http.Error(w, "successful is required", http.StatusBadRequest)
		return
	}
	rate, err := h.service.RecordOutcome(r.Context(), mux.Vars(r)["id"], *payload.Successful)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success_rate": rate})
}
