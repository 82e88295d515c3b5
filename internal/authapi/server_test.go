package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/config"
	"github.com/branchd-dev/roleportal/internal/models"
	"github.com/branchd-dev/roleportal/internal/session"
)

func testAPIConfig() config.AuthAPIConfig {
	return config.AuthAPIConfig{
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		CORSOrigins: []string{"*"},
	}
}

// setupTestAPI starts the API on an in-memory SQLite database
func setupTestAPI(t *testing.T) (*Server, *httptest.Server, *client.Client) {
	t.Helper()

	store, err := OpenGormStore(":memory:", zerolog.Nop())
	require.NoError(t, err)

	s, err := New(testAPIConfig(), store, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, ts, client.New(ts.URL, 5*time.Second)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestAPI_RegisterLoginAndListUsers(t *testing.T) {
	_, _, c := setupTestAPI(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "Ada", "ada@example.com", "secret", session.RoleAdmin))
	require.NoError(t, c.Register(ctx, "Bob", "bob@example.com", "secret", ""))

	admin, err := c.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, admin.Token)
	assert.Equal(t, session.RoleAdmin, admin.Role)
	assert.Equal(t, session.Profile{Name: "Ada", Email: "ada@example.com"}, admin.Profile)

	users, err := c.FetchUsers(ctx, admin.Token)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob@example.com", users[0].Email, "newest first")
	assert.Equal(t, "user", users[0].Role, "role defaults to user")
	assert.Equal(t, "ada@example.com", users[1].Email)
	assert.Len(t, string(users[0].ID), 26)
	assert.False(t, users[0].CreatedAt.IsZero())

	user, err := c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, session.RoleUser, user.Role)

	_, err = c.FetchUsers(ctx, user.Token)
	assert.True(t, client.IsUnauthorized(err), "a user token may not list users")
}

func TestAPI_DuplicateEmail(t *testing.T) {
	_, ts, c := setupTestAPI(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "Ada", "ada@example.com", "secret", session.RoleUser))

	err := c.Register(ctx, "Ada again", "ada@example.com", "other", session.RoleUser)
	require.Error(t, err)
	assert.Equal(t, client.Rejected, client.KindOf(err))
	assert.Equal(t, "Email already exists", client.MessageOf(err))

	resp := postJSON(t, ts.URL+"/register", map[string]string{"name": "A", "email": "ada@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_RegisterValidation(t *testing.T) {
	_, ts, _ := setupTestAPI(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing name", map[string]string{"email": "a@b.com", "password": "x"}, "Name, email, and password are required"},
		{"missing password", map[string]string{"name": "A", "email": "a@b.com"}, "Name, email, and password are required"},
		{"blank email", map[string]string{"name": "A", "email": "  ", "password": "x"}, "Name, email, and password are required"},
		{"unknown role", map[string]string{"name": "A", "email": "a@b.com", "password": "x", "role": "root"}, "Role must be user or admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, errorMessage(t, resp))
		})
	}
}

func TestAPI_LoginFailures(t *testing.T) {
	_, ts, c := setupTestAPI(t)
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "Ada", "ada@example.com", "secret", session.RoleUser))

	for _, creds := range [][2]string{{"ada@example.com", "wrong"}, {"nobody@example.com", "secret"}} {
		_, err := c.Login(ctx, creds[0], creds[1])
		require.Error(t, err)
		assert.Equal(t, client.Rejected, client.KindOf(err))
		assert.Equal(t, "Invalid credentials", client.MessageOf(err))
	}

	resp := postJSON(t, ts.URL+"/login", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AuthMiddleware(t *testing.T) {
	s, ts, c := setupTestAPI(t)
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "Ada", "ada@example.com", "secret", session.RoleAdmin))
	admin, err := c.Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		resp := getWithToken(t, ts.URL+"/admin/users", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Missing token", errorMessage(t, resp))
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := getWithToken(t, ts.URL+"/admin/users", "garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid token", errorMessage(t, resp))
	})

	t.Run("unknown user", func(t *testing.T) {
		token, err := s.tokens.GenerateToken("01HZZZZZZZZZZZZZZZZZZZZZZZ", models.RoleAdmin)
		require.NoError(t, err)
		resp := getWithToken(t, ts.URL+"/admin/users", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me", func(t *testing.T) {
		resp := getWithToken(t, ts.URL+"/me", admin.Token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var me UserDetail
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
		assert.Equal(t, "Ada", me.Name)
		assert.Equal(t, models.RoleAdmin, me.Role)
	})
}

func TestAPI_ForbiddenForUserRole(t *testing.T) {
	_, ts, c := setupTestAPI(t)
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "Bob", "bob@example.com", "secret", session.RoleUser))
	user, err := c.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	resp := getWithToken(t, ts.URL+"/admin/users", user.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = getWithToken(t, ts.URL+"/me", user.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CORS(t *testing.T) {
	_, ts, _ := setupTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Health(t *testing.T) {
	_, ts, _ := setupTestAPI(t)

	resp := getWithToken(t, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_GeneratesSecret(t *testing.T) {
	store, err := OpenGormStore(":memory:", zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	cfg := testAPIConfig()
	cfg.JWTSecret = ""
	s, err := New(cfg, store, zerolog.Nop(), "test")
	require.NoError(t, err)

	token, err := s.tokens.GenerateToken("01J", models.RoleUser)
	require.NoError(t, err)
	_, err = s.tokens.ValidateToken(token)
	assert.NoError(t, err)
}

func TestSQLStore(t *testing.T) {
	databaseURL := os.Getenv("AUTHAPI_TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("AUTHAPI_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	store, err := OpenStore(ctx, databaseURL, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	require.IsType(t, &SQLStore{}, store)

	email := "sqlstore-" + time.Now().Format("150405.000000000") + "@example.com"
	u := &models.User{Name: "Ada", Email: email, PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, store.Create(ctx, u))
	assert.Len(t, u.ID, 26)

	dup := &models.User{Name: "Ada", Email: email, PasswordHash: "x", Role: models.RoleUser}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrEmailTaken)

	found, err := store.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	users, err := store.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, users)
}
