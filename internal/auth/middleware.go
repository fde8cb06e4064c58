package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/session"
)

// Redirect targets of the gate.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// WantsJSON reports whether the caller is programmatic: it sent
// X-Requested-With: XMLHttpRequest, or its Accept header mentions json.
// Everyone else is treated as a browser and gets redirects.
func WantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "json")
}

// RequireAuthenticated lets a request through only if its session carries a
// user.
//
// Otherwise a programmatic caller gets 401 AUTH_REQUIRED and a browser is
// redirected to the login page. The gate only reads the session; it never
// creates, saves or destroys one.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		if WantsJSON(r) {
			writeAuthRequired(w)
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

// RequireAnonymous keeps logged-in users away from the login and
// registration pages by sending them to the dashboard.
func RequireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthenticated(r) {
			http.Redirect(w, r, DashboardPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext returns the authenticated user's id.
// Returns (0, false) for an anonymous request.
func UserIDFromContext(r *http.Request) (int64, bool) {
	h, ok := session.FromContext(r.Context())
	if !ok {
		return 0, false
	}
	id := h.UserID()
	return id, id != 0
}

func isAuthenticated(r *http.Request) bool {
	h, ok := session.FromContext(r.Context())
	return ok && h.IsAuthenticated()
}

// writeAuthRequired emits the standard error envelope. It is spelled out
// here because handler depends on this package, not the other way round.
func writeAuthRequired(w http.ResponseWriter) {
	err := apperror.AuthRequired()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperror.Status(err))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"message": apperror.PublicMessage(err),
			"code":    apperror.Code(err),
		},
	})
}
