// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path params, body, headers)
//  2. Call the service layer
//  3. Write the HTTP response: a JSON envelope, an HTML page or a redirect
//
// Handlers should NOT contain business logic. They are the glue between
// HTTP and the services.
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageData is what every template receives.
type pageData struct {
	Title           string
	Error           string
	FormData        map[string]string
	UserName        string
	Description     string
	IsAuthenticated bool
}

// Pages renders the server-side HTML.
//
// TEMPLATE COMPOSITION:
// layout.html defines the page shell with a {{template "content" .}}
// placeholder. Each page file defines its own "content". Pages are parsed
// once at startup, each paired with its own copy of the layout, so the
// "content" definitions never collide.
type Pages struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewPages parses the embedded templates. It fails fast at startup on a
// template error rather than on the first request.
func NewPages(logger *slog.Logger) (*Pages, error) {
	p := &Pages{
		templates: make(map[string]*template.Template),
		logger:    logger,
	}

	for _, name := range []string{"login", "register", "dashboard", "about"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	return p, nil
}

// render executes into a buffer first, so a template error becomes a clean
// 500 instead of a half-written page.
func (p *Pages) render(w http.ResponseWriter, name string, data pageData) {
	tmpl, ok := p.templates[name]
	if !ok {
		p.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if data.FormData == nil {
		data.FormData = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Home sends the visitor where they belong.
//
// HTTP: GET /
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r); ok {
		http.Redirect(w, r, auth.DashboardPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusFound)
}

// Dashboard greets the logged-in user.
//
// HTTP: GET /dashboard (behind RequireAuthenticated)
func (p *Pages) Dashboard(w http.ResponseWriter, r *http.Request) {
	var name string
	if h, ok := session.FromContext(r.Context()); ok {
		if s, ok := h.Session(); ok {
			name = s.UserName
		}
	}

	p.render(w, "dashboard", pageData{
		Title:           "Dashboard",
		UserName:        name,
		IsAuthenticated: true,
	})
}

// About is a static page open to everyone.
//
// HTTP: GET /about
func (p *Pages) About(w http.ResponseWriter, r *http.Request) {
	_, authed := auth.UserIDFromContext(r)
	p.render(w, "about", pageData{
		Title:           "About UserDesk",
		Description:     "A user directory with session-based authentication.",
		IsAuthenticated: authed,
	})
}
