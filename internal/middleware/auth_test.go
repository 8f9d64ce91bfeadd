package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"aivision/internal/models"
	"aivision/internal/services/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	tokens map[string]*models.User
	err    error
}

func (f *fakeAuthenticator) Authenticate(token string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if user, ok := f.tokens[token]; ok {
		return user, nil
	}
	return nil, auth.ErrInvalidToken
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(user.ID))
	})
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestAuthMiddleware(t *testing.T) {
	authenticator := &fakeAuthenticator{tokens: map[string]*models.User{"good": {ID: "u1"}}}
	handler := AuthMiddleware(authenticator, echoUser())

	tests := []struct {
		name       string
		path       string
		header     string
		cookie     string
		accept     string
		wantStatus int
		wantBody   string
		wantDetail string
	}{
		{name: "public auth endpoint", path: "/auth/sign-in", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "public static", path: "/static/app.js", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "bearer token", path: "/user/profile", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "u1"},
		{name: "cookie token", path: "/user/profile", cookie: "good", wantStatus: http.StatusOK, wantBody: "u1"},
		{name: "missing token", path: "/user/profile", wantStatus: http.StatusUnauthorized, wantDetail: "Access token not found in Authorization header"},
		{name: "bad token", path: "/user/profile", header: "Bearer bad", wantStatus: http.StatusUnauthorized, wantDetail: "Invalid authentication token"},
		{name: "page redirect", path: "/yolo", accept: "text/html,application/xhtml+xml", wantStatus: http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detail(t, rec))
			}
		})
	}
}

func TestAuthMiddleware_ErrorDetails(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantDetail string
	}{
		{auth.ErrTokenExpired, http.StatusUnauthorized, "Token has expired"},
		{auth.ErrInvalidPayload, http.StatusUnauthorized, "Invalid token payload"},
		{auth.ErrUserNotFound, http.StatusUnauthorized, "User not found"},
		{auth.ErrSecretMissing, http.StatusInternalServerError, "Access token secret not configured"},
	}

	for _, tt := range tests {
		handler := AuthMiddleware(&fakeAuthenticator{err: tt.err}, echoUser())
		req := httptest.NewRequest(http.MethodGet, "/user/messages", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, tt.wantStatus, rec.Code)
		assert.Equal(t, tt.wantDetail, detail(t, rec))
	}
}
