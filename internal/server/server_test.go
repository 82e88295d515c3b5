package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/config"
	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/session"
	"github.com/branchd-dev/roleportal/internal/webstore"
)

// fakeAPI is a remote authentication API with canned answers
type fakeAPI struct {
	*httptest.Server
	loginRole     string
	usersStatus   atomic.Int32
	loginCalls    atomic.Int32
	registerCalls atomic.Int32
	usersCalls    atomic.Int32
}

func newFakeAPI(t *testing.T, loginRole string) *fakeAPI {
	api := &fakeAPI{loginRole: loginRole}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		api.loginCalls.Add(1)
		var req struct{ Email string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if req.Email == "bad@example.com" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-" + api.loginRole,
			"user":  map[string]any{"id": 1, "name": "Ada", "email": req.Email, "role": api.loginRole},
		})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		api.registerCalls.Add(1)
		var req struct{ Email string }
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if req.Email == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"Email already exists"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"User registered"}`))
	})
	mux.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		api.usersCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if status := int(api.usersStatus.Load()); status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"name":"Ada","email":"ada@example.com","role":"admin","created_at":"2024-01-02T03:04:05Z"},
			{"id":2,"name":"Bob","email":"bob@example.com","role":"user","created_at":"2024-01-03T03:04:05Z"}
		]`))
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{CORSOrigins: []string{"http://localhost:5173"}},
		API:  config.APIConfig{Timeout: 5 * time.Second},
	}
}

func newTestServer(t *testing.T, api *fakeAPI, cfg *config.Config) *Server {
	opts := webstore.Options{
		CookieName: "roleportal",
		HashKey:    []byte("0123456789abcdef0123456789abcdef"),
		BlockKey:   []byte("fedcba9876543210fedcba9876543210"),
	}
	s, err := New(cfg, Dependencies{
		Sessions: webstore.NewCookieBackend(opts, zerolog.Nop()),
		Visitors: webstore.NewVisitors(opts),
		Client:   client.New(api.URL, 5*time.Second),
	}, zerolog.Nop(), "test")
	require.NoError(t, err)
	return s
}

// browser replays the cookies the server sets, like a single tab
type browser struct {
	handler http.Handler
	jar     map[string]*http.Cookie
}

func newBrowser(s *Server) *browser {
	return &browser{handler: s.Handler(), jar: map[string]*http.Cookie{}}
}

func (b *browser) do(method, path string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range b.jar {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.jar, c.Name)
			continue
		}
		b.jar[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, nil)
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, to string, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, w.Code, msgAndArgs...)
	assert.Equal(t, to, w.Header().Get("Location"), msgAndArgs...)
}

func loginForm(email string) url.Values {
	return url.Values{"email": {email}, "password": {"secret"}}
}

func TestServer_GuardWithoutSession(t *testing.T) {
	b := newBrowser(newTestServer(t, newFakeAPI(t, "user"), testConfig()))

	assertRedirect(t, b.get("/admin"), "/login")
	assertRedirect(t, b.get("/user"), "/login")

	w := b.get("/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)

	w = b.get("/register")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/register"`)
}

func TestServer_UnknownPathRendersLogin(t *testing.T) {
	b := newBrowser(newTestServer(t, newFakeAPI(t, "user"), testConfig()))

	for _, path := range []string{"/", "/does-not-exist", "/admin/extra"} {
		w := b.get(path)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `action="/login"`, path)
	}
}

func TestServer_AdminLoginFlow(t *testing.T) {
	api := newFakeAPI(t, "admin")
	b := newBrowser(newTestServer(t, api, testConfig()))

	w := b.do(http.MethodPost, "/login", loginForm("ada@example.com"))
	assertRedirect(t, w, "/admin")

	w = b.get("/admin")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "bob@example.com")
	assert.Contains(t, body, "ADMIN")
	assert.Contains(t, body, "USER")
	assert.Contains(t, body, "Logout")

	assertRedirect(t, b.get("/login"), "/admin")
	assertRedirect(t, b.get("/user"), "/login", "an admin on the user view goes to login")
	assertRedirect(t, b.get("/login"), "/admin", "login then forwards to the admin landing")
	assert.Equal(t, http.StatusOK, b.get("/register").Code)

	assert.Equal(t, int32(1), api.loginCalls.Load())
	assert.Equal(t, int32(1), api.usersCalls.Load())
}

func TestServer_UserLoginFlow(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	assertRedirect(t, b.do(http.MethodPost, "/login", loginForm("ada@example.com")), "/user")

	w := b.get("/user")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Ada")
	assert.Contains(t, w.Body.String(), "ada@example.com")

	assertRedirect(t, b.get("/admin"), "/login", "a user on the admin view goes to login")
	assertRedirect(t, b.get("/login"), "/user", "login then forwards to the user landing")
	assert.Equal(t, int32(0), api.usersCalls.Load())
}

func TestServer_LoginRejected(t *testing.T) {
	b := newBrowser(newTestServer(t, newFakeAPI(t, "user"), testConfig()))

	w := b.do(http.MethodPost, "/login", loginForm("bad@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
	assert.Contains(t, w.Body.String(), `value="bad@example.com"`)

	assertRedirect(t, b.get("/user"), "/login")
}

func TestServer_LoginMissingFields(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	w := b.do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password is required")
	assert.Equal(t, int32(0), api.loginCalls.Load())
}

func TestServer_RevokedTokenOnAdmin(t *testing.T) {
	api := newFakeAPI(t, "admin")
	b := newBrowser(newTestServer(t, api, testConfig()))

	assertRedirect(t, b.do(http.MethodPost, "/login", loginForm("ada@example.com")), "/admin")

	api.usersStatus.Store(http.StatusUnauthorized)
	assertRedirect(t, b.get("/admin"), "/login")

	// the session was cleared, so login renders instead of bouncing to admin
	w := b.get("/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assertRedirect(t, b.get("/admin"), "/login")
	assert.Equal(t, int32(1), api.usersCalls.Load())
}

func TestServer_AdminFetchFailureKeepsSession(t *testing.T) {
	api := newFakeAPI(t, "admin")
	b := newBrowser(newTestServer(t, api, testConfig()))

	assertRedirect(t, b.do(http.MethodPost, "/login", loginForm("ada@example.com")), "/admin")

	api.usersStatus.Store(http.StatusInternalServerError)
	w := b.get("/admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Could not load users.")

	assertRedirect(t, b.get("/login"), "/admin")
}

func TestServer_RegisterEmailTaken(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	w := b.do(http.MethodPost, "/register", url.Values{
		"name":     {"Ada"},
		"email":    {"taken@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists")
	assertRedirect(t, b.get("/user"), "/login")
}

func TestServer_RegisterSuccessStaysOnRegister(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	w := b.do(http.MethodPost, "/register", url.Values{
		"name":     {"Ada"},
		"email":    {"ada@example.com"},
		"password": {"secret"},
		"role":     {"admin"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Registration successful. You can now log in.")
	assert.Equal(t, int32(1), api.registerCalls.Load())
	assertRedirect(t, b.get("/admin"), "/login")
}

func TestServer_Logout(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	assertRedirect(t, b.do(http.MethodPost, "/login", loginForm("ada@example.com")), "/user")
	assertRedirect(t, b.do(http.MethodPost, "/logout", url.Values{}), "/login")
	assertRedirect(t, b.get("/user"), "/login")
	assert.Equal(t, int32(1), api.loginCalls.Load())
}

func TestServer_RateLimit(t *testing.T) {
	api := newFakeAPI(t, "user")
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{PerMinute: 1, Burst: 1}
	b := newBrowser(newTestServer(t, api, cfg))

	w := b.do(http.MethodPost, "/login", loginForm("bad@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = b.do(http.MethodPost, "/login", loginForm("bad@example.com"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many attempts. Please wait and try again.")
	assert.Equal(t, int32(1), api.loginCalls.Load())

	// register is throttled separately
	w = b.do(http.MethodPost, "/register", url.Values{"name": {"A"}, "email": {"a@example.com"}, "password": {"x"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_SessionStatus(t *testing.T) {
	api := newFakeAPI(t, "user")
	b := newBrowser(newTestServer(t, api, testConfig()))

	var status SessionStatus
	w := b.do(http.MethodGet, "/api/session?view=admin", nil, "Origin", "http://localhost:5173")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, SessionStatus{View: guard.ViewAdmin, Redirect: guard.ViewLogin}, status)

	assertRedirect(t, b.do(http.MethodPost, "/login", loginForm("ada@example.com")), "/user")

	status = SessionStatus{}
	w = b.get("/api/session?view=admin")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Authenticated)
	assert.False(t, status.Admitted)
	assert.Equal(t, guard.ViewLogin, status.Redirect)
	assert.Equal(t, session.RoleUser, status.Role)
	require.NotNil(t, status.User)
	assert.Equal(t, "Ada", status.User.Name)

	status = SessionStatus{}
	w = b.get("/api/session?view=user")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Admitted)
	assert.Empty(t, status.Redirect)

	assert.Equal(t, int32(0), api.usersCalls.Load())
}

func TestServer_Health(t *testing.T) {
	b := newBrowser(newTestServer(t, newFakeAPI(t, "user"), testConfig()))

	w := b.get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "cookie", body["sessions"])
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(testConfig(), Dependencies{}, zerolog.Nop(), "test")
	assert.Error(t, err)
}

func TestMultiLimiter_Allow(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(2), 2, time.Minute)
	key := "test"

	assert.True(t, ml.allow(key))
	assert.True(t, ml.allow(key))
	assert.False(t, ml.allow(key), "burst exhausted")
	assert.True(t, ml.allow("other"), "keys are limited independently")
}

func TestMultiLimiter_EvictsIdleKeys(t *testing.T) {
	ml := newMultiLimiter(rate.Limit(1), 1, time.Millisecond)
	ml.allow("a")
	time.Sleep(5 * time.Millisecond)
	ml.allow("b")

	assert.Equal(t, 1, ml.size())
}
