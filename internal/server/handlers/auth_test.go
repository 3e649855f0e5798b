package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/tripsync/internal/models"
	"github.com/iudanet/tripsync/internal/server/storage"
	"github.com/iudanet/tripsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users        map[string]*models.User // username -> User
	createError  error
	getUserError error
	deviceError  error
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Username]; exists {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	user, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if user, err := m.GetUserByID(ctx, id); err == nil {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *mockUserStorage) UpdateDeviceToken(ctx context.Context, userID, deviceToken string) error {
	if m.deviceError != nil {
		return m.deviceError
	}
	user, err := m.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.DeviceToken = deviceToken
	return nil
}

// mockTokenStorage is a mock implementation of TokenStorage for testing
type mockTokenStorage struct {
	tokens      map[string]*models.RefreshToken // hash -> token
	saveError   error
	getError    error
	deleteError error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{tokens: make(map[string]*models.RefreshToken)}
}

func (m *mockTokenStorage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	rt, ok := m.tokens[hash]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return rt, nil
}

func (m *mockTokenStorage) DeleteRefreshToken(ctx context.Context, hash string) error {
	if m.deleteError != nil {
		return m.deleteError
	}
	if _, ok := m.tokens[hash]; !ok {
		return storage.ErrTokenNotFound
	}
	delete(m.tokens, hash)
	return nil
}

func (m *mockTokenStorage) DeleteUserTokens(ctx context.Context, userID string) (int, error) {
	if m.deleteError != nil {
		return 0, m.deleteError
	}
	count := 0
	for hash, rt := range m.tokens {
		if rt.UserID == userID {
			delete(m.tokens, hash)
			count++
		}
	}
	return count, nil
}

func (m *mockTokenStorage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

var testJWTConfig = JWTConfig{
	Secret:          []byte("test-secret"),
	AccessTokenTTL:  15 * time.Minute,
	RefreshTokenTTL: 30 * 24 * time.Hour,
}

func newTestAuthHandler(users *mockUserStorage, tokens *mockTokenStorage) *AuthHandler {
	h := NewAuthHandler(setupTestLogger(), users, tokens, testJWTConfig)
	h.bcryptCost = bcrypt.MinCost
	return h
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func addUser(t *testing.T, users *mockUserStorage, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: "id-" + username, Username: username, PasswordHash: string(hash)}
	users.users[username] = user
	return user
}

func login(t *testing.T, h *AuthHandler, username, password, device string) api.TokenResponse {
	t.Helper()
	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
		Username:    username,
		Password:    password,
		DeviceToken: device,
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Register_Success(t *testing.T) {
	users := newMockUserStorage()
	handler := newTestAuthHandler(users, newMockTokenStorage())

	w := httptest.NewRecorder()
	handler.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username:    "testuser",
		Password:    "password123",
		DisplayName: "Test",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)

	var response api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.NotEmpty(t, response.UserID)

	user, err := users.GetUserByUsername(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, response.UserID, user.ID)
	assert.Equal(t, "Test", user.DisplayName)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestAuthHandler_Register_Invalid(t *testing.T) {
	users := newMockUserStorage()
	addUser(t, users, "taken", "password123")
	handler := newTestAuthHandler(users, newMockTokenStorage())

	tests := []struct {
		body       any
		name       string
		wantStatus int
	}{
		{name: "invalid json", body: "invalid", wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: map[string]any{"username": "abc", "password": "password123", "role": "admin"}, wantStatus: http.StatusBadRequest},
		{name: "short username", body: api.RegisterRequest{Username: "ab", Password: "password123"}, wantStatus: http.StatusBadRequest},
		{name: "bad characters", body: api.RegisterRequest{Username: "user name!", Password: "password123"}, wantStatus: http.StatusBadRequest},
		{name: "short password", body: api.RegisterRequest{Username: "newuser", Password: "short"}, wantStatus: http.StatusBadRequest},
		{name: "bad display name", body: api.RegisterRequest{Username: "newuser", Password: "password123", DisplayName: " x"}, wantStatus: http.StatusBadRequest},
		{name: "duplicate username", body: api.RegisterRequest{Username: "taken", Password: "password123"}, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestAuthHandler_Register_StorageError(t *testing.T) {
	users := newMockUserStorage()
	users.createError = errors.New("database error")
	handler := newTestAuthHandler(users, newMockTokenStorage())

	w := httptest.NewRecorder()
	handler.Register(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/register", api.RegisterRequest{
		Username: "testuser",
		Password: "password123",
	}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database error")
}

func TestAuthHandler_Login_Success(t *testing.T) {
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	user := addUser(t, users, "alice", "password123")
	handler := newTestAuthHandler(users, tokens)

	resp := login(t, handler, "alice", "password123", "device-1")

	assert.Equal(t, user.ID, resp.UserID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(15*60), resp.ExpiresIn)
	assert.Equal(t, "device-1", user.DeviceToken)

	claims, err := ValidateAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	// в БД хранится только хеш
	require.Len(t, tokens.tokens, 1)
	_, ok := tokens.tokens[HashRefreshToken(resp.RefreshToken)]
	assert.True(t, ok)
	_, ok = tokens.tokens[resp.RefreshToken]
	assert.False(t, ok)
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	users := newMockUserStorage()
	addUser(t, users, "alice", "password123")
	handler := newTestAuthHandler(users, newMockTokenStorage())

	tests := []struct {
		body       any
		name       string
		wantStatus int
	}{
		{name: "invalid json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "empty fields", body: api.LoginRequest{}, wantStatus: http.StatusBadRequest},
		{name: "user not found", body: api.LoginRequest{Username: "bob", Password: "password123"}, wantStatus: http.StatusUnauthorized},
		{name: "wrong password", body: api.LoginRequest{Username: "alice", Password: "wrongpassword"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Login(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_Login_StorageErrors(t *testing.T) {
	t.Run("get user fails", func(t *testing.T) {
		users := newMockUserStorage()
		users.getUserError = errors.New("db down")
		handler := newTestAuthHandler(users, newMockTokenStorage())

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{Username: "alice", Password: "password123"}))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("save token fails", func(t *testing.T) {
		users := newMockUserStorage()
		addUser(t, users, "alice", "password123")
		tokens := newMockTokenStorage()
		tokens.saveError = errors.New("db down")
		handler := newTestAuthHandler(users, tokens)

		w := httptest.NewRecorder()
		handler.Login(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", api.LoginRequest{Username: "alice", Password: "password123"}))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("device token update is not fatal", func(t *testing.T) {
		users := newMockUserStorage()
		addUser(t, users, "alice", "password123")
		users.deviceError = errors.New("db down")
		handler := newTestAuthHandler(users, newMockTokenStorage())

		resp := login(t, handler, "alice", "password123", "device-1")
		assert.NotEmpty(t, resp.AccessToken)
	})
}

func TestAuthHandler_Refresh_RotatesToken(t *testing.T) {
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	addUser(t, users, "alice", "password123")
	handler := newTestAuthHandler(users, tokens)

	first := login(t, handler, "alice", "password123", "")

	w := httptest.NewRecorder()
	handler.Refresh(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{RefreshToken: first.RefreshToken}))
	require.Equal(t, http.StatusOK, w.Code)

	var second api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.UserID, second.UserID)

	// старый токен больше не действует
	w = httptest.NewRecorder()
	handler.Refresh(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{RefreshToken: first.RefreshToken}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, tokens.tokens, 1)
}

func TestAuthHandler_Refresh_Failures(t *testing.T) {
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	user := addUser(t, users, "alice", "password123")
	handler := newTestAuthHandler(users, tokens)

	tokens.tokens[HashRefreshToken("expired")] = &models.RefreshToken{
		TokenHash: HashRefreshToken("expired"),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	tokens.tokens[HashRefreshToken("orphan")] = &models.RefreshToken{
		TokenHash: HashRefreshToken("orphan"),
		UserID:    "deleted-user",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	tests := []struct {
		body       any
		name       string
		wantStatus int
	}{
		{name: "empty token", body: api.RefreshRequest{}, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: "x", wantStatus: http.StatusBadRequest},
		{name: "unknown token", body: api.RefreshRequest{RefreshToken: "unknown"}, wantStatus: http.StatusUnauthorized},
		{name: "expired token", body: api.RefreshRequest{RefreshToken: "expired"}, wantStatus: http.StatusUnauthorized},
		{name: "user deleted", body: api.RefreshRequest{RefreshToken: "orphan"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Refresh(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", tt.body))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}

	// просроченный токен удаляется при попытке использования
	_, ok := tokens.tokens[HashRefreshToken("expired")]
	assert.False(t, ok)
}

func TestAuthHandler_Refresh_StorageError(t *testing.T) {
	tokens := newMockTokenStorage()
	tokens.getError = errors.New("db down")
	handler := newTestAuthHandler(newMockUserStorage(), tokens)

	w := httptest.NewRecorder()
	handler.Refresh(w, jsonRequest(t, http.MethodPost, "/api/v1/auth/refresh", api.RefreshRequest{RefreshToken: "x"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	tests := []struct {
		name        string
		body        func(own, foreign string) any
		wantStatus  int
		wantTokens  int
		wantDevice  string
		withoutUser bool
	}{
		{
			name:       "single token",
			body:       func(own, _ string) any { return api.LogoutRequest{RefreshToken: own} },
			wantStatus: http.StatusNoContent,
			wantTokens: 2,
		},
		{
			name:       "all tokens",
			body:       func(_, _ string) any { return nil },
			wantStatus: http.StatusNoContent,
			wantTokens: 1,
		},
		{
			name:       "unknown token is fine",
			body:       func(_, _ string) any { return api.LogoutRequest{RefreshToken: "unknown"} },
			wantStatus: http.StatusNoContent,
			wantTokens: 3,
		},
		{
			name:       "foreign token",
			body:       func(_, foreign string) any { return api.LogoutRequest{RefreshToken: foreign} },
			wantStatus: http.StatusForbidden,
			wantTokens: 3,
			wantDevice: "device-1",
		},
		{
			name:        "no user in context",
			body:        func(_, _ string) any { return nil },
			wantStatus:  http.StatusUnauthorized,
			wantTokens:  3,
			wantDevice:  "device-1",
			withoutUser: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMockUserStorage()
			tokens := newMockTokenStorage()
			alice := addUser(t, users, "alice", "password123")
			addUser(t, users, "bob", "password123")
			handler := newTestAuthHandler(users, tokens)

			own := login(t, handler, "alice", "password123", "device-1")
			login(t, handler, "alice", "password123", "device-1")
			foreign := login(t, handler, "bob", "password123", "")

			req := jsonRequest(t, http.MethodPost, "/api/v1/auth/logout", tt.body(own.RefreshToken, foreign.RefreshToken))
			if !tt.withoutUser {
				req = req.WithContext(WithUser(req.Context(), alice.ID, alice.Username))
			}

			w := httptest.NewRecorder()
			handler.Logout(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Len(t, tokens.tokens, tt.wantTokens)
			assert.Equal(t, tt.wantDevice, alice.DeviceToken)
		})
	}
}

func TestAuthHandler_Logout_DeleteError(t *testing.T) {
	users := newMockUserStorage()
	tokens := newMockTokenStorage()
	alice := addUser(t, users, "alice", "password123")
	handler := newTestAuthHandler(users, tokens)
	tokens.deleteError = errors.New("db down")

	req := jsonRequest(t, http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(WithUser(req.Context(), alice.ID, alice.Username))
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestValidateAccessToken(t *testing.T) {
	token, _, err := GenerateAccessToken(testJWTConfig, "u1", "alice")
	require.NoError(t, err)

	expired, _, err := GenerateAccessToken(JWTConfig{Secret: testJWTConfig.Secret, AccessTokenTTL: -time.Minute}, "u1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     JWTConfig
		token   string
		wantErr bool
	}{
		{name: "valid", cfg: testJWTConfig, token: token},
		{name: "wrong secret", cfg: JWTConfig{Secret: []byte("other")}, token: token, wantErr: true},
		{name: "expired", cfg: testJWTConfig, token: expired, wantErr: true},
		{name: "garbage", cfg: testJWTConfig, token: "not.a.token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateAccessToken(tt.cfg, tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAccessToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", claims.UserID)
		})
	}
}

func TestValidateAccessToken_ForeignClaims(t *testing.T) {
	now := time.Now()
	sign := func(claims AccessClaims) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTConfig.Secret)
		require.NoError(t, err)
		return raw
	}
	base := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "u1",
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	otherAudience := base
	otherAudience.Audience = jwt.ClaimStrings{"another-service"}
	noExpiry := base
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		claims AccessClaims
	}{
		{name: "other audience", claims: AccessClaims{UserID: "u1", RegisteredClaims: otherAudience}},
		{name: "no expiry", claims: AccessClaims{UserID: "u1", RegisteredClaims: noExpiry}},
		{name: "subject mismatch", claims: AccessClaims{UserID: "u2", RegisteredClaims: base}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessToken(testJWTConfig, sign(tt.claims))
			assert.ErrorIs(t, err, ErrInvalidAccessToken)
		})
	}
}
