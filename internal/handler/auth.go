package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/service"
	"github.com/sakif/userdesk/internal/session"
)

var errNoSession = errors.New("handler: no session handle on request context")

// AuthHandler serves the login, registration and logout flows.
//
// TWO KINDS OF CALLER:
// Every endpoint answers both a browser and a programmatic client
// (auth.WantsJSON). Browsers get redirects, and on failure a one-shot flash
// that the form page shows once. API clients get the JSON envelope.
type AuthHandler struct {
	auth   *service.AuthService
	pages  *Pages
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, pages *Pages, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		pages:  pages,
		logger: logger,
	}
}

// ShowLogin renders the login form, consuming any pending flash.
//
// HTTP: GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, "login", "Login")
}

// ShowRegister renders the registration form, consuming any pending flash.
//
// HTTP: GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, "register", "Register")
}

func (h *AuthHandler) showForm(w http.ResponseWriter, r *http.Request, name, title string) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	data := pageData{Title: title}
	if f := sess.PopFlash(r.Context()); f != nil {
		data.Error = f.Error
		data.FormData = f.FormData
	}
	h.pages.render(w, name, data)
}

// Login checks credentials and starts a session.
//
// HTTP: POST /login
// Body: {"email": "...", "password": "..."} as JSON or a urlencoded form
//
// On failure a browser is sent back to the form with the email refilled.
// The password is never echoed.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	in, err := readFields(w, r)
	if err == nil {
		var user *model.PublicUser
		user, err = h.auth.Login(r.Context(), sess, in.get("email"), in.get("password"))
		if err == nil {
			h.succeed(w, r, http.StatusOK, user, "Login successful")
			return
		}
	}

	h.fail(w, r, sess, err, auth.LoginPath, map[string]string{
		"email": in.get("email"),
	})
}

// Register creates an account and starts a session.
//
// HTTP: POST /register
// Body: name, email, password, confirmPassword
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	in, err := readFields(w, r)
	if err == nil {
		var user *model.PublicUser
		user, err = h.auth.Register(r.Context(), sess, service.RegisterInput{
			Name:            in.get("name"),
			Email:           in.get("email"),
			Password:        in.get("password"),
			ConfirmPassword: in.get("confirmPassword"),
		})
		if err == nil {
			h.succeed(w, r, http.StatusCreated, user, "Registration successful")
			return
		}
	}

	h.fail(w, r, sess, err, "/register", map[string]string{
		"name":  in.get("name"),
		"email": in.get("email"),
	})
}

// Logout ends the session. Anonymous callers get the same answer.
//
// HTTP: POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), sess); err != nil {
		if auth.WantsJSON(r) {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Error("logout failed", slog.Any("error", err))
	}

	if auth.WantsJSON(r) {
		writeSuccess(w, http.StatusOK, nil, "Logout successful")
		return
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

// Me returns the logged-in user.
//
// HTTP: GET /auth/me (behind RequireAuthenticated)
// Response: {"success": true, "data": {"user": {...}}}
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"user": user}, "")
}

func (h *AuthHandler) succeed(w http.ResponseWriter, r *http.Request, status int, user *model.PublicUser, message string) {
	if auth.WantsJSON(r) {
		writeSuccess(w, status, map[string]any{"user": user}, message)
		return
	}
	http.Redirect(w, r, auth.DashboardPath, http.StatusFound)
}

// fail answers an API caller with the error envelope, and a browser with a
// flash plus a redirect back to the form.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, sess *session.Handle, err error, formPath string, formData map[string]string) {
	if auth.WantsJSON(r) {
		writeError(w, h.logger, err)
		return
	}

	if apperror.Status(err) == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.Any("error", err))
	}
	flash := session.Flash{Error: apperror.PublicMessage(err), FormData: formData}
	if ferr := sess.SetFlash(r.Context(), flash); ferr != nil {
		h.logger.Error("failed to store flash", slog.Any("error", ferr))
	}
	http.Redirect(w, r, formPath, http.StatusFound)
}

// session fetches the request's session handle. Its absence means the
// session middleware is not mounted, which is a wiring bug.
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) (*session.Handle, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.logger.Error("session middleware not mounted", slog.String("path", r.URL.Path))
		writeError(w, h.logger, errNoSession)
		return nil, false
	}
	return sess, true
}
