// Package api serves the autoblog HTTP surface: the integrations admin
// page, the JSON API, integration-owned routes and the event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"autoblog/internal/metrics"
	"autoblog/internal/site"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SiteFactory builds a fresh request scope.
type SiteFactory func() *site.Site

// Config configures the server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	// CronOnRequest runs due pseudo-cron events after every scoped request.
	CronOnRequest bool
}

// Server provides the HTTP API for autoblog.
type Server struct {
	cfg     Config
	newSite SiteFactory
	auth    *Auth
	hub     *Hub
	metrics *metrics.Metrics
	logger  *zap.Logger

	router chi.Router
	server *http.Server
	cronWG sync.WaitGroup
}

// NewServer creates a server. A nil auth leaves /api and the admin page
// open; a nil hub disables the event stream.
func NewServer(cfg Config, newSite SiteFactory, auth *Auth, hub *Hub, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		newSite: newSite,
		auth:    auth,
		hub:     hub,
		metrics: m,
		logger:  logger.Named("api"),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID, s.logRequests, middleware.Recoverer)

	r.Get("/", s.handleSitemap)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.scope).Get("/admin/integrations", s.handleAdminPage)

		r.Route("/api", func(r chi.Router) {
			r.Get("/categories", s.handleCategories)
			if s.hub != nil {
				r.Method(http.MethodGet, "/events", s.hub)
			}

			r.Group(func(r chi.Router) {
				r.Use(s.scope)
				r.Get("/integrations", s.handleListIntegrations)
				r.Get("/integrations/{id}", s.handleGetIntegration)
				r.Post("/integrations/{id}/enable", s.handleToggle(true))
				r.Post("/integrations/{id}/disable", s.handleToggle(false))
				r.Get("/integrations/{id}/settings", s.handleGetSettings)
				r.Put("/integrations/{id}/settings", s.handleUpdateSettings)
				r.Post("/integrations/{id}/settings", s.handleUpdateSettings)
				r.Get("/posts", s.handleListPosts)
				r.Post("/generate", s.handleGenerate)
				r.Get("/cron", s.handleCronEvents)
				r.Get("/routes", s.handleListRoutes)
				r.Mount("/x", http.HandlerFunc(s.handleIntegrationRoute))
			})
		})
	})
	return r
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server, disconnects event clients and
// waits for running pseudo-cron spawns.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.Wait()
	return nil
}
