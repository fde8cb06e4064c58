// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built in New and wired
// to routes in setupRoutes, so the rest of the code never reaches for a
// global.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → user store (memory or sqlite, seeded)
//	  → PasswordService, session Manager, metrics
//	  → AuthService, UserService
//	  → AuthHandler, UserHandler, Pages
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/userdesk/internal/auth"
	"github.com/sakif/userdesk/internal/config"
	"github.com/sakif/userdesk/internal/handler"
	"github.com/sakif/userdesk/internal/metrics"
	"github.com/sakif/userdesk/internal/middleware"
	"github.com/sakif/userdesk/internal/repository"
	"github.com/sakif/userdesk/internal/repository/memory"
	sqliteRepo "github.com/sakif/userdesk/internal/repository/sqlite"
	"github.com/sakif/userdesk/internal/service"
	"github.com/sakif/userdesk/internal/session"
)

// Server represents the HTTP server and all its dependencies.
//
// The server owns the sqlite connection when that driver is selected and
// closes it on shutdown. db is nil for the memory driver.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	users    repository.UserRepository
	sessions *session.Manager
	registry *prometheus.Registry
}

// New builds the server from a validated config.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: metrics.NewRegistry(),
	}

	passwords := auth.NewPasswordServiceWithCost(cfg.BcryptCost)

	users, err := s.openStore(passwords)
	if err != nil {
		return nil, err
	}
	s.users = users

	signer, err := session.NewSigner(cfg.SessionSecret)
	if err != nil {
		s.closeStore()
		return nil, fmt.Errorf("creating session signer: %w", err)
	}
	sessionStore := session.NewMemoryStore()
	s.sessions = session.NewManager(sessionStore, signer, session.Options{
		TTL:    cfg.SessionTTL,
		Secure: cfg.Secure(),
	}, logger)

	m := metrics.New(s.registry)
	metrics.RegisterActiveSessions(s.registry, sessionStore.Len)

	if err := s.setupRoutes(passwords, m); err != nil {
		s.closeStore()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore creates the configured user store and loads the seed accounts,
// hashing their passwords with the server's hasher.
func (s *Server) openStore(passwords *auth.PasswordService) (repository.UserRepository, error) {
	seeds, err := repository.BuildSeedUsers(passwords, repository.DefaultSeeds)
	if err != nil {
		return nil, fmt.Errorf("building seed accounts: %w", err)
	}

	switch s.config.StoreDriver {
	case config.DriverSQLite:
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Seed(context.Background(), seeds); err != nil {
			db.Close()
			return nil, fmt.Errorf("seeding database: %w", err)
		}
		s.db = db
		return db, nil
	default:
		return memory.NewUserStore(seeds...), nil
	}
}

func (s *Server) closeStore() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.Any("error", err))
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                    → /dashboard or /login
// GET    /about               → about page
// GET    /login, /register    → forms            (anonymous only)
// POST   /login, /register    → form or JSON     (anonymous only)
// POST   /logout              → ends the session
// *      /auth/...            → same four plus GET /auth/me
// GET    /dashboard           → dashboard        (session required)
// *      /api/users[/{id}]    → user CRUD, JSON  (session required)
// GET    /api/health          → liveness
// GET    /metrics             → Prometheus
//
// MIDDLEWARE ORDER:
// RequestID → RealIP → Logger → Recoverer → SecurityHeaders → sessions.
// Logger wraps Recoverer so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes(passwords *auth.PasswordService, m *metrics.Metrics) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.config.Secure()))

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.NotFound)

	s.router.Get("/api/health", handler.Health)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	pages, err := handler.NewPages(s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	authService := service.NewAuthService(s.users, passwords, m, s.logger)
	userService := service.NewUserService(s.users, passwords, m, s.logger)
	authHandler := handler.NewAuthHandler(authService, pages, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)

	// Everything below needs the per-request session handle.
	s.router.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/", pages.Home)
		r.Get("/about", pages.About)
		r.With(auth.RequireAuthenticated).Get("/dashboard", pages.Dashboard)

		mountAuth(r, authHandler)
		r.Route("/auth", func(r chi.Router) {
			mountAuth(r, authHandler)
			r.With(auth.RequireAuthenticated).Get("/me", authHandler.Me)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Use(auth.RequireAuthenticated)
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleCreate)
			r.Get("/{id}", userHandler.HandleGetByID)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
		})
	})

	return nil
}

// mountAuth registers the login, registration and logout routes on r.
func mountAuth(r chi.Router, h *handler.AuthHandler) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAnonymous)
		r.Get("/login", h.ShowLogin)
		r.Post("/login", h.Login)
		r.Get("/register", h.ShowRegister)
		r.Post("/register", h.Register)
	})
	r.Post("/logout", h.Logout)
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on the way out; callers that
// only use Handler must call it themselves.
func (s *Server) Close() {
	s.closeStore()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("env", s.config.Env),
			slog.String("store", s.config.StoreDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
