// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It decides:
//   - Which storage backend the repositories use
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() opens:
//	  store (sqlite or postgres) → AuthService, TaskService → handlers
//	  token service, password hasher, event publisher, GitHub provider
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
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

	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/config"
	"github.com/sakif/tasklist/internal/events"
	"github.com/sakif/tasklist/internal/events/rabbitmq"
	"github.com/sakif/tasklist/internal/handler"
	"github.com/sakif/tasklist/internal/middleware"
	"github.com/sakif/tasklist/internal/repository"
	pgRepo "github.com/sakif/tasklist/internal/repository/postgres"
	sqliteRepo "github.com/sakif/tasklist/internal/repository/sqlite"
	"github.com/sakif/tasklist/internal/service"
)

// store bundles whichever backend DB_DRIVER selected.
type store struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	pinger handler.Pinger
	close  func()
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and the broker connection. Both are closed
// by Close, which Start defers.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	store     *store
	publisher events.Publisher
	closers   []func()
}

// New opens storage and the optional integrations, then builds the router.
//
// IMPORT ALIASES:
// repository/sqlite and repository/postgres are imported as sqliteRepo and
// pgRepo to keep them apart from the driver packages.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     st,
		publisher: events.Noop{},
		closers:   []func(){st.close},
	}

	// === EVENT PUBLISHER ===
	// The broker is optional: without it the server still serves every
	// route, task events are simply dropped.
	if cfg.AMQP.Enabled() {
		pub, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, task events will not be published",
				slog.String("error", err.Error()),
			)
		} else {
			s.publisher = pub
			s.closers = append(s.closers, func() {
				if err := pub.Close(); err != nil {
					logger.Error("closing rabbitmq publisher", slog.String("error", err.Error()))
				}
			})
		}
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(ctx context.Context, cfg config.Database) (*store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqliteRepo.New(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &store{
			users:  db,
			tasks:  db,
			pinger: db,
			close:  func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		db, err := pgRepo.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &store{
			users:  pgRepo.NewUserRepo(db),
			tasks:  pgRepo.NewTaskRepo(db),
			pinger: db,
			close:  db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz               → store reachability
// POST   /auth/register         → create account
// POST   /auth/login            → token (text/plain)
// GET    /auth/github/login     → redirect to GitHub      (only when configured)
// GET    /auth/github/callback  → token (text/plain)      (only when configured)
// GET    /api/tasks             → caller's tasks          (bearer token)
// GET    /api/tasks/{id}        → one task                (bearer token)
// POST   /api/tasks             → create                  (bearer token)
// PUT    /api/tasks/{id}        → update                  (bearer token)
// DELETE /api/tasks/{id}        → delete                  (bearer token)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (the logger reads it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === AUTH DEPENDENCIES ===
	tokens, err := auth.NewTokenService(s.config.JWT.Secret, s.config.JWT.Issuer, s.config.JWT.Audience)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(s.config.Password.Scheme, s.config.Password.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	var github handler.OAuthProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	// === SERVICES ===
	// Notice: the handlers never touch the database directly.
	// The services never touch HTTP.
	authService, err := service.NewAuthService(s.store.users, tokens, hasher, s.logger)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}
	taskService := service.NewTaskService(s.store.tasks, s.publisher, s.logger)

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	taskHandler := handler.NewTaskHandler(taskService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store.pinger, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		if authHandler.GitHubEnabled() {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/tasks", taskHandler.HandleList)
		r.Post("/tasks", taskHandler.HandleCreate)
		r.Get("/tasks/{id}", taskHandler.HandleGet)
		r.Put("/tasks/{id}", taskHandler.HandleUpdate)
		r.Delete("/tasks/{id}", taskHandler.HandleDelete)
	})

	return nil
}

// Handler exposes the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Close releases the database and broker connections in reverse order.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (SHUTDOWN_TIMEOUT)
// 3. Close the database and broker connections
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.Database.Driver),
			slog.Bool("github", s.config.GitHub.Enabled()),
			slog.Bool("events", s.config.AMQP.Enabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
