// Package http assembles the service's HTTP surface: middleware chain,
// public and authenticated route groups, health, and metrics.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parqueo/internal/platform/metrics"
	"parqueo/internal/platform/middleware"
)

// Registrar is anything that can mount routes on a router. Every
// domain handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

// Config wires the router.
type Config struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.JWTValidator
	Timeout   time.Duration

	// Public handlers mount outside the auth wall (login).
	Public []Registrar
	// Protected handlers require a valid session.
	Protected []Registrar
}

// New builds the full router.
func New(cfg Config) chi.Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		for _, h := range cfg.Public {
			h.Register(api)
		}
		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
			for _, h := range cfg.Protected {
				h.Register(protected)
			}
		})
	})

	return r
}
