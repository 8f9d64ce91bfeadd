package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"aivision/internal/models"
	"aivision/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*models.User)}
}

func (m *memoryUsers) Insert(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryUsers) GetByID(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *memoryUsers) {
	t.Helper()
	users := newMemoryUsers()
	svc := NewService(users, NewTokenIssuer("test-secret", time.Hour))
	svc.cost = bcrypt.MinCost
	return svc, users
}

func TestSignUp_StoresHashedPassword(t *testing.T) {
	svc, users := newTestService(t)

	user, err := svc.SignUp("jane@example.com", "correct horse", "Jane Doe")
	require.NoError(t, err)

	stored, err := users.GetByID(user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", stored.HashedPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("correct horse")))
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		email, password, name, field string
	}{
		{"not-an-email", "password123", "Jane", "email"},
		{"jane@example.com", "short", "Jane", "password"},
		{"jane@example.com", strings.Repeat("a", 80), "Jane", "password"},
		{"jane@example.com", "password123", "   ", "name"},
	}

	for _, tt := range tests {
		_, err := svc.SignUp(tt.email, tt.password, tt.name)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tt.field, verr.Field)
	}
}

func TestSignUp_LongestAcceptedPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SignUp("jane@example.com", strings.Repeat("a", 72), "Jane")
	assert.NoError(t, err)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SignUp("jane@example.com", "password123", "Jane")
	require.NoError(t, err)

	_, err = svc.SignUp("jane@example.com", "password456", "Jane Again")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignIn_AndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	user, err := svc.SignUp("jane@example.com", "password123", "Jane Doe")
	require.NoError(t, err)

	token, err := svc.SignIn("jane@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotEmpty(t, token.AccessToken)

	authed, err := svc.Authenticate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestSignIn_WrongCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SignUp("jane@example.com", "password123", "Jane Doe")
	require.NoError(t, err)

	_, err = svc.SignIn("jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	signed, _, err := svc.tokens.Issue("ghost", "ghost@example.com")
	require.NoError(t, err)

	_, err = svc.Authenticate(signed)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, _, err := issuer.Issue("u1", "u1@example.com")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_Invalid(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	_, err := issuer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenIssuer("other-secret", time.Hour)
	signed, _, err := other.Issue("u1", "u1@example.com")
	require.NoError(t, err)
	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_MissingPayload(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	claims := jwt.MapClaims{"email": "x@example.com", "exp": time.Now().Add(time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTokenIssuer_MissingSecret(t *testing.T) {
	issuer := NewTokenIssuer("", time.Hour)

	_, _, err := issuer.Issue("u1", "u1@example.com")
	assert.ErrorIs(t, err, ErrSecretMissing)

	_, err = issuer.Verify("anything")
	assert.ErrorIs(t, err, ErrSecretMissing)
}
