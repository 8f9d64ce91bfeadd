package handlers

import (
	"errors"
	"net/http"

	"aivision/internal/logger"
	"aivision/internal/repository"
)

func ProfileHandler(users repository.UserRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		stored, err := users.GetByID(user.ID)
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Profile not found")
			return
		}
		if err != nil {
			logger.Error("Error loading profile %s: %v", user.ID, err)
			respondError(w, http.StatusInternalServerError, "An error occurred while loading the profile")
			return
		}

		respondJSON(w, http.StatusOK, stored.Profile(), logger)
	}
}

// MessagesHandler returns the user's assistant history, oldest first.
func MessagesHandler(messages repository.MessageRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		history, err := messages.ListByUser(user.ID)
		if err != nil {
			logger.Error("Error loading messages for %s: %v", user.ID, err)
			respondError(w, http.StatusInternalServerError, "An error occurred while loading messages")
			return
		}

		respondJSON(w, http.StatusOK, history, logger)
	}
}

func ClearMessagesHandler(messages repository.MessageRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := messages.DeleteByUser(user.ID); err != nil {
			logger.Error("Error clearing messages for %s: %v", user.ID, err)
			respondError(w, http.StatusInternalServerError, "An error occurred while clearing messages")
			return
		}

		logger.Info("Cleared message history for %s", user.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}
