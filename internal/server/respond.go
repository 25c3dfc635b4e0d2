package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"statementvault/pkg/types"
)

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("failed to encode json response")
	}
}

// respondError maps the core's error taxonomy onto HTTP statuses. Token
// redemption failures always produce the same body, whatever actually went
// wrong with the token.
func (s *Service) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		s.respondJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, types.ErrInvalidToken):
		s.respondJSON(w, http.StatusNotFound, errorBody(types.ErrInvalidToken.Error()))
	case errors.Is(err, types.ErrStatementNotFound),
		errors.Is(err, types.ErrCustomerNotFound):
		s.respondJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, types.ErrDuplicatePeriod):
		s.respondJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, types.ErrRateLimited):
		s.respondJSON(w, http.StatusTooManyRequests, errorBody(types.ErrRateLimited.Error()))
	case errors.Is(err, types.ErrCustomerInactive):
		s.respondJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, types.ErrStorageUnavailable):
		s.respondJSON(w, http.StatusServiceUnavailable, errorBody("storage temporarily unavailable"))
	default:
		s.logger.WithError(err).Error("unexpected error")
		s.respondJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
	}
}
