package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/services"
)

// ActionHandler exposes the action queue over HTTP.
type ActionHandler struct {
	service services.ActionService
}

func NewActionHandler(service services.ActionService) *ActionHandler {
	return &ActionHandler{service: service}
}

type createActionRequest struct {
	ActionType  string          `json:"action_type"`
	RiskLevel   string          `json:"risk_level"`
	ActionData  json.RawMessage `json:"action_data"`
	ContextData json.RawMessage `json:"context_data,omitempty"`
	Confidence  *float64        `json:"confidence,omitempty"`
}

// Create handles POST /api/actions
// @Summary Propose an action
// @Description Create an agent-proposed action; it lands in the pending queue
// @Tags actions
// @Accept json
// @Produce json
// @Param action body createActionRequest true "Proposed action"
// @Success 201 {object} models.Action
// @Failure 400 {object} map[string]string "Validation error"
// @Router /actions [post]
func (h *ActionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	a := &models.Action{
		ActionType:  payload.ActionType,
		RiskLevel:   payload.RiskLevel,
		ActionData:  payload.ActionData,
		ContextData: payload.ContextData,
		Confidence:  payload.Confidence,
	}
	if err := h.service.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List handles GET /api/actions
// @Summary List proposed actions
// @Description List actions newest first, with the unpaginated total
// @Tags actions
// @Produce json
// @Param status query string false "Filter by status"
// @Param action_type query string false "Filter by action type"
// @Param risk_level query string false "Filter by risk level"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Unknown filter value"
// @Router /actions [get]
func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := &models.ActionFilter{
		Status:     q.Get("status"),
		ActionType: q.Get("action_type"),
		RiskLevel:  q.Get("risk_level"),
		Limit:      limit,
		Offset:     offset,
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actions": list,
		"total":   total,
	})
}

// Get handles GET /api/actions/{id}
// @Summary Get one action
// @Tags actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.Action
// @Failure 404 {object} map[string]string "Unknown id"
// @Router /actions/{id} [get]
func (h *ActionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Approve handles POST /api/actions/{id}/approve
// @Summary Approve a pending action
// @Tags actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.Action
// @Failure 404 {object} map[string]string "Unknown id"
// @Failure 409 {object} map[string]string "Action already decided"
// @Router /actions/{id}/approve [post]
func (h *ActionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Deny handles POST /api/actions/{id}/deny
// @Summary Deny a pending action
// @Description Deny with required feedback explaining the decision
// @Tags actions
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.Action
// @Failure 400 {object} map[string]string "Missing feedback"
// @Failure 409 {object} map[string]string "Action already decided"
// @Router /actions/{id}/deny [post]
func (h *ActionHandler) Deny(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Feedback string `json:"feedback"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	a, err := h.service.Deny(r.Context(), mux.Vars(r)["id"], payload.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Edit handles POST /api/actions/{id}/edit
// @Summary Approve a pending action with modifications
// @Tags actions
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.Action
// @Failure 400 {object} map[string]string "Edited payload is not a JSON object"
// @Failure 409 {object} map[string]string "Action already decided"
// @Router /actions/{id}/edit [post]
func (h *ActionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EditedData json.RawMessage `json:"edited_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	a, err := h.service.Edit(r.Context(), mux.Vars(r)["id"], payload.EditedData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Evaluate handles POST /api/actions/{id}/evaluate
// @Summary Evaluate a pending action against the auto-approve rules
// @Tags actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.AutoApprovalResult
// @Failure 409 {object} map[string]string "Action already decided"
// @Router /actions/{id}/evaluate [post]
func (h *ActionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TryAutoApprove(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Matches handles GET /api/actions/{id}/matches
// @Summary Preview rule matches for an action
// @Description Evaluate every enabled rule of the action's type, including rules on probation
// @Tags actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} map[string]interface{}
// @Router /actions/{id}/matches [get]
func (h *ActionHandler) Matches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.PreviewMatches(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// RuleDraft handles GET /api/actions/{id}/rule-draft
// @Summary Derive a rule draft from an action
// @Description Build an equals-condition scaffold from the action's scalar fields
// @Tags actions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} models.RuleDraft
// @Router /actions/{id}/rule-draft [get]
func (h *ActionHandler) RuleDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.RuleDraft(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
