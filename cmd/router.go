package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/morningstar-47/intelligence-gateway/config"
	"github.com/morningstar-47/intelligence-gateway/internal/handler"
	"github.com/morningstar-47/intelligence-gateway/internal/metrics"
	"github.com/morningstar-47/intelligence-gateway/internal/middleware"
	"github.com/morningstar-47/intelligence-gateway/internal/ratelimit"
)

// setupRouter wires the middleware chain and the route hierarchy: internal
// endpoints are registered exactly, and everything else under the mount
// prefix falls through to the proxy.
func setupRouter(
	cfg *config.Config,
	log *slog.Logger,
	proxyHandler *handler.ProxyHandler,
	internalHandler *handler.InternalHandler,
	limiter ratelimit.Limiter,
	collector *metrics.Collector,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))

	if cfg.RateLimit.Enabled && limiter != nil {
		period, _ := time.ParseDuration(cfg.RateLimit.Period)
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Limiter: limiter,
			Limit:   cfg.RateLimit.Limit,
			Period:  period,
			Logger:  log,
			OnReject: func(req *http.Request) {
				collector.Emit(metrics.MetricEvent{
					Type:      metrics.EventRateLimited,
					Timestamp: time.Now(),
				})
			},
		}))
	}

	r.Get("/", internalHandler.Root)
	r.Get("/health", internalHandler.Health)
	r.Get("/metrics", collector.Handler())

	mount := cfg.Proxy.Mount
	r.Get(mount+"/health", internalHandler.Health)
	r.Get(mount+"/routes", internalHandler.Routes)
	r.Get(mount+"/services/health", internalHandler.ServicesHealth)

	r.Handle(mount+"/*", proxyHandler)

	return r
}
