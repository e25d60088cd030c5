// Package web serves the JSON API for daily activity imports, manual
// entries, metrics and coaching.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/salesops/internal/coaching"
	"github.com/JonMunkholm/salesops/internal/config"
	"github.com/JonMunkholm/salesops/internal/core"
	mw "github.com/JonMunkholm/salesops/internal/web/middleware"
)

// Coach is the coaching surface the handlers use.
type Coach interface {
	TeamMetrics(ctx context.Context, weekStart time.Time) (coaching.TeamMetrics, error)
	GenerateEpisode(ctx context.Context, producerEmail string, weekStart time.Time) (coaching.Episode, error)
	Episodes(ctx context.Context, producerEmail string, limit int) ([]coaching.Episode, error)
	GenerateTeamEmail(ctx context.Context, weekStart time.Time) (coaching.TeamEmail, error)
	SendTeamEmail(ctx context.Context, weekStart time.Time, recipients []string) (coaching.TeamReport, error)
}

// Server is the HTTP server.
type Server struct {
	cfg     *config.Config
	service *core.Service
	coach   Coach

	apiLimiter    mw.Limiter
	importLimiter mw.Limiter

	router *chi.Mux
	server *http.Server
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCoach enables the metrics and coaching routes.
func WithCoach(c Coach) Option {
	return func(s *Server) { s.coach = c }
}

// WithRateLimiters replaces the in-memory limiters, typically with Redis
// backed ones shared across instances.
func WithRateLimiters(api, imports mw.Limiter) Option {
	return func(s *Server) {
		s.apiLimiter = api
		s.importLimiter = imports
	}
}

// NewServer builds the router. Rate limiting uses in-memory limiters
// unless WithRateLimiters is given.
func NewServer(cfg *config.Config, service *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Rate.Enabled {
		if s.apiLimiter == nil {
			s.apiLimiter = mw.NewMemoryLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		}
		if s.importLimiter == nil {
			s.importLimiter = mw.NewMemoryLimiter(cfg.Rate.ImportLimit, time.Minute)
		}
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	if len(s.cfg.Server.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.apiLimiter != nil {
		s.router.Use(mw.RateLimit(s.apiLimiter))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Get("/producers", s.handleListProducers)
		r.Get("/sources", s.handleListSources)
		r.Post("/entries", s.handleSaveEntry)

		r.Get("/import/template", s.handleDownloadTemplate)
		r.Group(func(r chi.Router) {
			if s.importLimiter != nil {
				r.Use(mw.RateLimit(s.importLimiter))
			}
			r.Post("/import/validate", s.handleValidateImport)
			r.Post("/import", s.handleImport)
		})

		r.Get("/metrics/team", s.handleTeamMetrics)
		r.Post("/coaching/episodes", s.handleGenerateEpisode)
		r.Get("/coaching/episodes", s.handleListEpisodes)
		r.Post("/reports/team-email", s.handleTeamEmail)
	})
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders sets hardening headers on every response. The API serves
// no pages, so the CSP denies everything.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
