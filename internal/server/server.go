// Package server is the composition root: it builds every dependency from
// the configuration and serves the API until a shutdown signal arrives.
//
//	config → clock, database → services → handlers → router → chi mux
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

	"github.com/sakif/usuarios-api/internal/auth"
	"github.com/sakif/usuarios-api/internal/clock"
	"github.com/sakif/usuarios-api/internal/config"
	"github.com/sakif/usuarios-api/internal/handler"
	"github.com/sakif/usuarios-api/internal/middleware"
	"github.com/sakif/usuarios-api/internal/repository/sqlstore"
	"github.com/sakif/usuarios-api/internal/router"
	"github.com/sakif/usuarios-api/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the database handle and the HTTP handler tree.
type Server struct {
	mux    *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// New opens the database (running migrations) and wires the routes. The
// route table is validated before New returns, so a route naming an
// unregistered middleware fails startup instead of the first request.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	clk, err := clock.NewSystem(cfg.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, clk)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN(), clk, logger)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		mux:    chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(clk, passwords, tokens); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes(clk clock.Clock, passwords *auth.PasswordService, tokens *auth.TokenService) error {
	users := service.NewUserService(s.db, passwords, clk, s.logger)
	authSvc := service.NewAuthService(s.db, tokens, passwords, s.config.JWTTTL, s.logger)

	resp := handler.NewResponder(s.logger, s.config.AppDebug)

	masterKey := ""
	if s.config.AuthMasterKeyEnabled {
		masterKey = s.config.JWTSecret
		s.logger.Warn("master key enabled: JWT_SECRET is accepted as a super-admin bearer token")
	}

	rt := router.New(resp.Error, s.logger)
	rt.RegisterMiddleware(handler.AuthMiddleware, auth.RequireBearer(authSvc, masterKey, resp.Error))

	handler.Register(rt,
		handler.NewIndexHandler(handler.ServiceInfo{
			Name:        s.config.AppName,
			Version:     s.config.AppVersion,
			Environment: s.config.AppEnv,
		}, s.db, clk, resp, s.logger),
		handler.NewUserHandler(users, resp, s.logger),
	)

	if err := rt.Validate(); err != nil {
		return err
	}

	// Global middleware, outermost first.
	s.mux.Use(chimiddleware.RequestID)
	s.mux.Use(chimiddleware.RealIP)
	s.mux.Use(middleware.Logger(s.logger, clk))
	s.mux.Use(chimiddleware.Recoverer)

	s.mux.Handle("/*", rt)
	// chi rejects methods it does not know before "/*" is tried; send those
	// through the router too so they get the JSON error envelope.
	s.mux.MethodNotAllowed(rt.ServeHTTP)
	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.mux,
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
			slog.String("app", s.config.AppName),
			slog.String("version", s.config.AppVersion),
			slog.String("env", s.config.AppEnv),
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
