// Package server exposes the extraction pipeline and the knowledge graph
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
)

// Server is the HTTP API.
type Server struct {
	cfg  medkg.ServerConfig
	echo *echo.Echo
}

// New builds the echo instance with middleware and routes.
func New(engine *medkg.Engine, cfg medkg.ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(Recovery())
	e.Use(RequestID())
	e.Use(Logger())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
			MaxAge:       86400,
		}))
	}
	if cfg.MaxBodyBytes != "" {
		e.Use(echomw.BodyLimit(cfg.MaxBodyBytes))
	}
	e.Use(APIKeyAuth(cfg.APIKey))

	NewHandler(engine).RegisterRoutes(e)
	return &Server{cfg: cfg, echo: e}
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", s.cfg.Addr)
		if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
