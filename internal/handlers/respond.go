package handlers

import (
	"encoding/json"
	"net/http"

	"aivision/internal/dto"
	"aivision/internal/logger"
	"aivision/internal/middleware"
	"aivision/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, data any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, dto.ErrorResponse{Detail: detail}, nil)
}

// currentUser returns the user resolved by the auth middleware. It answers
// 401 itself when the request carries none.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Not authenticated")
	}
	return user, ok
}
