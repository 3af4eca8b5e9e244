package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/context-rot-monitor/internal/http/middleware"
	"github.com/wolfman30/context-rot-monitor/internal/monitor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Monitor            *monitor.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Monitor == nil {
		panic("router: monitor handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	h := cfg.Monitor
	r.Group(func(public chi.Router) {
		public.Get("/", h.Info)
		public.Get("/health", h.Health)
		public.Get("/stats", h.Stats)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/sessions", func(sessions chi.Router) {
		sessions.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		sessions.Post("/", h.CreateSession)
		sessions.Route("/{sessionID}", func(s chi.Router) {
			s.Use(requireSessionID)
			s.Delete("/", h.Delete)
			s.Post("/initialize", h.Initialize)
			s.Post("/turns", h.AddTurn)
			s.Get("/check-drift", h.CheckDrift)
			s.Post("/check-drift", h.CheckDrift)
			s.Get("/state", h.State)
			s.Post("/reset", h.Reset)
			s.Get("/alerts", h.Alerts)
			s.Get("/stream", h.Stream)
		})
	})

	return r
}
