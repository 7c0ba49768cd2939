package handlers

import (
	"net/http"

	"github.com/gatekeep-app/gatekeep/internal/services"
)

// StatsHandler exposes the read-only approval metrics.
type StatsHandler struct {
	service services.StatsService
}

func NewStatsHandler(service services.StatsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Get handles GET /api/stats
// @Summary Get approval metrics
// @Description Reviewed totals, approval and auto-approve rates, per-type breakdown and rule effectiveness
// @Tags stats
// @Produce json
// @Success 200 {object} models.Stats
// @Router /stats [get]
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
