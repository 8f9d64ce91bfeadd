package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"aivision/internal/models"
	"aivision/internal/services/auth"
)

// TokenCookie holds the access token for browser page navigation.
const TokenCookie = "access-token"

type contextKey struct{}

// Authenticator resolves an access token to a user.
type Authenticator interface {
	Authenticate(token string) (*models.User, error)
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the user stored by AuthMiddleware, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*models.User)
	return user, ok && user != nil
}

// TokenFromRequest extracts the access token from the Authorization header,
// falling back to the access-token cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// isPublic reports whether path can be served without a token.
func isPublic(path string) bool {
	return path == "/auth" ||
		path == "/health" ||
		strings.HasPrefix(path, "/auth/") ||
		strings.HasPrefix(path, "/static/")
}

// AuthMiddleware checks the access token on every non-public request and
// stores the resolved user in the request context.
func AuthMiddleware(authenticator Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := TokenFromRequest(r)
		if token == "" {
			reject(w, r, "Access token not found in Authorization header")
			return
		}

		user, err := authenticator.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSecretMissing):
				writeDetail(w, http.StatusInternalServerError, "Access token secret not configured")
			case errors.Is(err, auth.ErrTokenExpired):
				reject(w, r, "Token has expired")
			case errors.Is(err, auth.ErrInvalidPayload):
				reject(w, r, "Invalid token payload")
			case errors.Is(err, auth.ErrUserNotFound):
				reject(w, r, "User not found")
			case errors.Is(err, auth.ErrInvalidToken):
				reject(w, r, "Invalid authentication token")
			default:
				reject(w, r, "Could not validate credentials")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// reject redirects page navigations to the sign-in page and answers API
// requests with 401.
func reject(w http.ResponseWriter, r *http.Request, detail string) {
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
