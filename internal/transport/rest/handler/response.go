package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lorancew-l/proto-testing-sub000/internal/engine"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrDefinition), errors.Is(err, engine.ErrInvalidIntent):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrResearchNotFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrIntentRejected):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
