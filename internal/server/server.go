// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects the database, services,
// handlers, and middleware, and decides which URL maps to which handler.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB → AuthService, ListService → AuthHandler, ListHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place, rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sakif/superlists/internal/auth"
	"github.com/sakif/superlists/internal/config"
	"github.com/sakif/superlists/internal/handler"
	"github.com/sakif/superlists/internal/mail"
	"github.com/sakif/superlists/internal/middleware"
	sqliteRepo "github.com/sakif/superlists/internal/repository/sqlite"
	"github.com/sakif/superlists/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the limiter's cleanup
// goroutine. Close releases both; Start calls it on shutdown.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	mailer  mail.Mailer
	limiter *auth.EmailLimiter
	done    chan struct{}
}

// New creates a Server that "sends" mail to the log.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	return NewWithMailer(cfg, logger, mail.NewLogMailer(logger))
}

// NewWithMailer creates a Server delivering login links through mailer.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it is not confused with
// the modernc sqlite driver package.
func NewWithMailer(cfg config.Config, logger *slog.Logger, mailer mail.Mailer) (*Server, error) {
	if cfg.SessionSecret == "" {
		// config.Validate only lets this through in the local environment.
		cfg.SessionSecret = uuid.NewString() + uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions end when the server restarts")
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		mailer:  mailer,
		limiter: auth.NewEmailLimiter(cfg.LoginLinkInterval, cfg.LoginLinkBurst, logger),
		done:    make(chan struct{}),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	s.limiter.StartCleanup(10*time.Minute, s.done)
	return s, nil
}

// OpenDB creates the database's directory if needed and opens it.
// The CLI commands share it with the server.
func OpenDB(path string) (*sqliteRepo.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// AuthConfig extracts the settings AuthService needs.
func AuthConfig(cfg config.Config) service.AuthConfig {
	return service.AuthConfig{
		BaseURL:  cfg.BaseURL,
		MailFrom: cfg.MailFrom,
		TokenTTL: cfg.LoginTokenTTL,
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                    → database reachable
//	POST /accounts/send_login_email  → mail a login link
//	GET  /accounts/login?token=      → spend link, set session, redirect to /
//	POST /accounts/logout            → clear session
//	POST /api/lists                  → create list with first item   (session optional)
//	GET  /api/lists/{id}             → list with items               (session optional)
//	POST /api/lists/{id}/items       → add item                      (session optional)
//	GET  /api/me                     → current user                  (session required)
//	GET  /api/users/{email}/lists    → that user's lists             (session required, own email only)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs before our Logger so every log line carries the ID.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	sessions, err := auth.NewSessionService(s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return err
	}

	// DEPENDENCY CHAIN:
	//   s.db implements every repository interface
	//   services receive the interfaces, handlers receive the services
	authService := service.NewAuthService(s.db, s.db, s.mailer, s.limiter, AuthConfig(s.config), s.logger)
	listService := service.NewListService(s.db, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, sessions, !s.config.IsLocal(), s.logger)
	listHandler := handler.NewListHandler(listService, authService, s.logger)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/accounts", func(r chi.Router) {
		r.Post("/send_login_email", authHandler.HandleSendLoginEmail)
		r.Get("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public: anonymous callers get anonymous lists.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalSession(sessions))
			r.Post("/lists", listHandler.HandleCreate)
			r.Get("/lists/{id}", listHandler.HandleGet)
			r.Post("/lists/{id}/items", listHandler.HandleAddItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(sessions))
			r.Get("/me", authHandler.HandleMe)
			r.Get("/users/{email}/lists", listHandler.HandleUserLists)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	close(s.done)
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
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

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("env", s.config.AppEnv),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
