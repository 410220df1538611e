package devapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.Version = "test"

	users := NewUsers()
	users.cost = bcrypt.MinCost

	return NewServer(cfg, users, logging.NewNopLogger())
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doLogin(t *testing.T, h http.Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, username, email string) userResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var u userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func login(t *testing.T, h http.Handler, identifier string) string {
	t.Helper()
	rec := doLogin(t, h, identifier, "password123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.AccessToken
}

func detailString(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, rec.Body.String())
}

func TestRegister_Created(t *testing.T) {
	s := newTestServer(t)
	u := register(t, s.Handler(), "alice", "alice@example.com")

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Nil(t, u.DisplayName)

	created, err := time.ParseInLocation(timeLayout, u.CreatedAt, time.UTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), created, time.Minute)
	assert.NotContains(t, u.CreatedAt, "Z")
}

func TestRegister_Conflicts(t *testing.T) {
	s := newTestServer(t)
	register(t, s.Handler(), "alice", "alice@example.com")

	rec := doJSON(t, s.Handler(), http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already registered", detailString(t, rec))

	rec = doJSON(t, s.Handler(), http.MethodPost, "/auth/register", "", map[string]string{
		"username": "bob", "email": "ALICE@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", detailString(t, rec))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]string
		field string
		msg   string
	}{
		{"short username", map[string]string{"username": "al", "email": "a@example.com", "password": "password123"}, "username", "String should have at least 3 characters"},
		{"short password", map[string]string{"username": "alice", "email": "a@example.com", "password": "short"}, "password", "String should have at least 8 characters"},
		{"bad email", map[string]string{"username": "alice", "email": "nope", "password": "password123"}, "email", "value is not a valid email address"},
		{"missing email", map[string]string{"username": "alice", "password": "password123"}, "email", "Field required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := doJSON(t, s.Handler(), http.MethodPost, "/auth/register", "", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var body struct {
				Detail []detailItem `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Detail, 1)
			assert.Equal(t, []string{"body", tt.field}, body.Detail[0].Loc)
			assert.Equal(t, tt.msg, body.Detail[0].Msg)
		})
	}
}

func TestLogin_UsernameOrEmail(t *testing.T) {
	s := newTestServer(t)
	u := register(t, s.Handler(), "alice", "alice@example.com")

	for _, id := range []string{"alice", "alice@example.com"} {
		rec := doLogin(t, s.Handler(), id, "password123")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			AccessToken string       `json:"access_token"`
			TokenType   string       `json:"token_type"`
			User        userResponse `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.AccessToken)
		assert.Equal(t, "bearer", body.TokenType)
		assert.Equal(t, u.ID, body.User.ID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	register(t, s.Handler(), "alice", "alice@example.com")

	rec := doLogin(t, s.Handler(), "alice", "wrong-password")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgBadCredentials, detailString(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = doLogin(t, s.Handler(), "nobody", "password123")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_MissingField(t *testing.T) {
	s := newTestServer(t)
	rec := doLogin(t, s.Handler(), "alice", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	u := register(t, s.Handler(), "alice", "alice@example.com")
	token := login(t, s.Handler(), "alice")

	rec := doJSON(t, s.Handler(), http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, u.ID, got.ID)
}

func TestMe_RejectsBadTokens(t *testing.T) {
	s := newTestServer(t)
	register(t, s.Handler(), "alice", "alice@example.com")

	expired, err := GenerateToken("whatever", []byte(s.cfg.SecretKey), -time.Minute)
	require.NoError(t, err)
	orphan, err := GenerateToken("00000000-0000-0000-0000-000000000000", []byte(s.cfg.SecretKey), time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"none":    "",
		"garbage": "abc",
		"expired": expired,
		"orphan":  orphan,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodGet, "/users/me", token, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, msgInvalidToken, detailString(t, rec))
		})
	}
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t)
	u := register(t, s.Handler(), "alice", "alice@example.com")
	token := login(t, s.Handler(), "alice")

	rec := doJSON(t, s.Handler(), http.MethodPut, "/users/"+u.ID, token, map[string]string{"display_name": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, "Alice", *got.DisplayName)
	assert.Nil(t, got.Bio)

	rec = doJSON(t, s.Handler(), http.MethodPut, "/users/"+u.ID, token, map[string]string{"bio": "Peated only"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, "Alice", *got.DisplayName)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "Peated only", *got.Bio)
}

func TestUpdateUser_OtherUser(t *testing.T) {
	s := newTestServer(t)
	register(t, s.Handler(), "alice", "alice@example.com")
	bob := register(t, s.Handler(), "bob", "bob@example.com")
	token := login(t, s.Handler(), "alice")

	rec := doJSON(t, s.Handler(), http.MethodPut, "/users/"+bob.ID, token, map[string]string{"bio": "x"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, msgForbidden, detailString(t, rec))
}

func TestUpdateUser_BadID(t *testing.T) {
	s := newTestServer(t)
	register(t, s.Handler(), "alice", "alice@example.com")
	token := login(t, s.Handler(), "alice")

	rec := doJSON(t, s.Handler(), http.MethodPut, "/users/not-a-uuid", token, map[string]string{"bio": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetUser(t *testing.T) {
	s := newTestServer(t)
	u := register(t, s.Handler(), "alice", "alice@example.com")

	rec := doJSON(t, s.Handler(), http.MethodGet, "/users/"+u.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/users/00000000-0000-0000-0000-000000000000", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, detailString(t, rec))
}
