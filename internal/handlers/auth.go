package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aivision/internal/dto"
	"aivision/internal/logger"
	"aivision/internal/middleware"
	"aivision/internal/services/auth"
	"aivision/internal/services/storage"
)

func SignUpHandler(authService *auth.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		user, err := authService.SignUp(req.Email, req.Password, req.Name)
		if err != nil {
			var validation *auth.ValidationError
			switch {
			case errors.As(err, &validation):
				respondError(w, http.StatusUnprocessableEntity, validation.Error())
			case errors.Is(err, auth.ErrEmailTaken):
				respondError(w, http.StatusConflict, "Email already registered")
			default:
				logger.Error("Sign-up failed: %v", err)
				respondError(w, http.StatusInternalServerError, "An error occurred while creating the account")
			}
			return
		}

		logger.Info("User %s signed up", user.ID)
		respondJSON(w, http.StatusCreated, dto.MessageResponse{Message: "User created successfully"}, logger)
	}
}

func SignInHandler(authService *auth.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}

		token, err := authService.SignIn(req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				respondError(w, http.StatusUnauthorized, "Invalid email or password")
			case errors.Is(err, auth.ErrSecretMissing):
				respondError(w, http.StatusInternalServerError, "Access token secret not configured")
			default:
				logger.Error("Sign-in failed: %v", err)
				respondError(w, http.StatusInternalServerError, "An error occurred while signing in")
			}
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.TokenCookie,
			Value:    token.AccessToken,
			Path:     "/",
			Expires:  token.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		respondJSON(w, http.StatusOK, token, logger)
	}
}

// SignOutHandler clears the token cookie and, for a valid token, the
// user's workspace.
func SignOutHandler(authService *auth.Service, workspace *storage.WorkspaceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := middleware.TokenFromRequest(r); token != "" {
			if user, err := authService.Authenticate(token); err == nil {
				workspace.Remove(user.ID)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:    middleware.TokenCookie,
			Value:   "",
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
		})

		w.WriteHeader(http.StatusNoContent)
	}
}

func AuthStatusHandler(authService *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := dto.AuthStatus{}
		if token := middleware.TokenFromRequest(r); token != "" {
			_, err := authService.Authenticate(token)
			status.Authenticated = err == nil
		}
		respondJSON(w, http.StatusOK, status, nil)
	}
}
