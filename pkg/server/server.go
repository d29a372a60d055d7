// Package server exposes the gateway and the capability prober over a local
// HTTP API for a browser front end. Streamed replies and probe progress are
// delivered as server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/germanamz/promptforge/pkg/capability"
	"github.com/germanamz/promptforge/pkg/gateway"
	"github.com/germanamz/promptforge/pkg/settings"
)

const (
	maxBodyBytes        = 32 << 20 // attachments travel inline
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// DefaultAddr is used when the configuration leaves server.addr empty.
const DefaultAddr = "127.0.0.1:8787"

// Server serves the HTTP API.
type Server struct {
	cfg     settings.Config
	gateway *gateway.Gateway
	prober  *capability.Prober
	log     *slog.Logger
	app     *echo.Echo
	addr    string
}

// New constructs a Server wired with routing and middleware.
func New(cfg settings.Config, gw *gateway.Gateway, prober *capability.Prober, log *slog.Logger) (*Server, error) {
	if gw == nil || prober == nil {
		return nil, errors.New("server: gateway and prober must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.InfoContext(c.Request().Context(), "request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	addr := cfg.Server.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		cfg:     cfg,
		gateway: gw,
		prober:  prober,
		log:     log,
		app:     e,
		addr:    addr,
	}
	s.registerRoutes()

	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.app }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Run starts listening and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "starting server", "addr", s.addr)

	// No write timeout: streamed replies may legitimately run for minutes.
	httpServer := &http.Server{
		Addr:        s.addr,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/api/providers", s.handleProviders)
	s.app.GET("/api/usage", s.handleUsage)
	s.app.GET("/api/models", s.handleModels)
	s.app.POST("/api/chat", s.handleChat)
	s.app.POST("/api/capabilities", s.handleProbe)
	s.app.GET("/api/capabilities", s.handleCacheStats)
	s.app.DELETE("/api/capabilities", s.handleClearCache)
}

// provider resolves a provider and checks that the model belongs to it.
func (s *Server) provider(providerID, modelID string) (settings.ProviderConfig, error) {
	p, err := s.lookupProvider(providerID)
	if err != nil {
		return settings.ProviderConfig{}, err
	}
	if _, ok := p.Model(modelID); !ok {
		return settings.ProviderConfig{}, requestError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("provider %q has no model %q", providerID, modelID),
			Type:    "invalid_request_error",
		}
	}
	return p, nil
}

func (s *Server) lookupProvider(providerID string) (settings.ProviderConfig, error) {
	p, ok := s.cfg.Provider(providerID)
	if !ok {
		return settings.ProviderConfig{}, requestError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("unknown provider %q", providerID),
			Type:    "invalid_request_error",
		}
	}
	return p, nil
}
