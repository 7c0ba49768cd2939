package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/gatekeep-app/gatekeep/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto HTTP statuses: validation
// 400, state conflicts 409, unknown ids 404, integrity violations and the
// rest 500. The body carries enough detail for a UI to explain the failure.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation   *apperrors.ErrValidation
		invalidState *apperrors.ErrInvalidState
		notFound     *apperrors.ErrNotFound
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validation.Error(),
			"field": validation.Field,
		})
	case errors.As(err, &invalidState):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":    invalidState.Error(),
			"status":   invalidState.Status,
			"expected": invalidState.Expected,
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
