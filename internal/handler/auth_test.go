package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/handler"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository/memory"
	"github.com/sakif/userdesk/internal/service"
	"github.com/sakif/userdesk/internal/session"
)

// authEnv is a router carrying the auth routes, the session middleware and
// the gates, plus a tiny cookie jar.
type authEnv struct {
	router http.Handler
	store  *memory.UserStore
	cookie *http.Cookie
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	passwords := auth.NewPasswordServiceWithCost(4)
	hash, err := passwords.Hash("password123")
	require.NoError(t, err)

	store := memory.NewUserStore(
		model.User{ID: 1, Name: "John Doe", Email: "john@example.com", PasswordHash: hash},
	)

	signer, err := session.NewSigner("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	sessions := session.NewManager(session.NewMemoryStore(), signer, session.Options{}, discardLogger())

	pages, err := handler.NewPages(discardLogger())
	require.NoError(t, err)

	h := handler.NewAuthHandler(
		service.NewAuthService(store, passwords, nil, discardLogger()),
		pages,
		discardLogger(),
	)

	r := chi.NewRouter()
	r.Use(sessions.Middleware)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAnonymous)
		r.Get("/login", h.ShowLogin)
		r.Post("/login", h.Login)
		r.Get("/register", h.ShowRegister)
		r.Post("/register", h.Register)
	})
	r.Post("/logout", h.Logout)
	r.With(auth.RequireAuthenticated).Get("/auth/me", h.Me)
	r.With(auth.RequireAuthenticated).Get("/dashboard", pages.Dashboard)

	return &authEnv{router: r, store: store}
}

// do sends a request with the current cookie and remembers any new one.
func (e *authEnv) do(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name != session.DefaultCookieName {
			continue
		}
		if c.MaxAge < 0 {
			e.cookie = nil
		} else {
			e.cookie = c
		}
	}
	return rr
}

func (e *authEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *authEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return e.do(req)
}

func (e *authEnv) get(path string, wantJSON bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if wantJSON {
		req.Header.Set("Accept", "application/json")
	}
	return e.do(req)
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_JSONSuccess(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postJSON("/login", `{"email":"john@example.com","password":"password123"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.True(t, body.Success)
	assert.Equal(t, "Login successful", body.Message)
	assert.JSONEq(t, `{"user":{"id":1,"name":"John Doe","email":"john@example.com"}}`, string(body.Data))
	require.NotNil(t, env.cookie)

	rr = env.get("/auth/me", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user":{"id":1,"name":"John Doe","email":"john@example.com"}}`, string(decodeEnvelope(t, rr).Data))
}

func TestLogin_JSONFailures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"wrong password", `{"email":"john@example.com","password":"nope-nope"}`, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password"},
		{"unknown email", `{"email":"ghost@example.com","password":"password123"}`, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password"},
		{"missing password", `{"email":"john@example.com"}`, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAuthEnv(t)

			rr := env.postJSON("/login", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeEnvelope(t, rr)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			assert.Nil(t, env.cookie, "no session on failure")
		})
	}
}

func TestLogin_FormSuccessRedirectsToDashboard(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postForm("/login", url.Values{"email": {"john@example.com"}, "password": {"password123"}})

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	rr = env.get("/dashboard", false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Welcome, John Doe!")
}

func TestLogin_FormFailureFlashesOnce(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postForm("/login", url.Values{"email": {"john@example.com"}, "password": {"wrong-one"}})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = env.get("/login", false)
	require.Equal(t, http.StatusOK, rr.Code)
	page := rr.Body.String()
	assert.Contains(t, page, "Invalid email or password")
	assert.Contains(t, page, `value="john@example.com"`)
	assert.NotContains(t, page, "wrong-one")

	rr = env.get("/login", false)
	assert.NotContains(t, rr.Body.String(), "Invalid email or password")
}

func TestLoginPage_LoggedInUserIsRedirected(t *testing.T) {
	env := newAuthEnv(t)
	env.postJSON("/login", `{"email":"john@example.com","password":"password123"}`)

	rr := env.get("/login", false)

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_JSONCreated(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postJSON("/register", `{"name":"Alice","email":"alice@example.com","password":"secret1","confirmPassword":"secret1"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.Equal(t, "Registration successful", body.Message)
	assert.JSONEq(t, `{"user":{"id":2,"name":"Alice","email":"alice@example.com"}}`, string(body.Data))

	rr = env.get("/auth/me", true)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRegister_FormFailureKeepsNameAndEmail(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postForm("/register", url.Values{
		"name":            {"Alice"},
		"email":           {"alice@example.com"},
		"password":        {"secret1"},
		"confirmPassword": {"secret2"},
	})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/register", rr.Header().Get("Location"))

	page := env.get("/register", false).Body.String()
	assert.Contains(t, page, "Passwords do not match")
	assert.Contains(t, page, `value="Alice"`)
	assert.Contains(t, page, `value="alice@example.com"`)
	assert.Equal(t, 1, env.store.Len())
}

// =========================================================================
// LOGOUT & ME
// =========================================================================

func TestLogout(t *testing.T) {
	env := newAuthEnv(t)
	env.postJSON("/login", `{"email":"john@example.com","password":"password123"}`)
	stale := env.cookie
	require.NotNil(t, stale)

	rr := env.postForm("/logout", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Nil(t, env.cookie)

	// Replaying the old cookie does not resurrect the session.
	env.cookie = stale
	rr = env.get("/auth/me", true)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "AUTH_REQUIRED", decodeEnvelope(t, rr).Error.Code)
}

func TestLogout_JSONWhenAnonymous(t *testing.T) {
	env := newAuthEnv(t)

	rr := env.postJSON("/logout", "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeEnvelope(t, rr)
	assert.True(t, body.Success)
	assert.Equal(t, "Logout successful", body.Message)
}

func TestMe_DanglingSession(t *testing.T) {
	env := newAuthEnv(t)
	env.postJSON("/login", `{"email":"john@example.com","password":"password123"}`)
	_, err := env.store.Delete(context.Background(), 1)
	require.NoError(t, err)

	rr := env.get("/auth/me", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", decodeEnvelope(t, rr).Error.Message)

	// The dangling session was destroyed.
	rr = env.get("/auth/me", true)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
