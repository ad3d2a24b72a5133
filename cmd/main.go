package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/morningstar-47/intelligence-gateway/config"
	"github.com/morningstar-47/intelligence-gateway/internal/handler"
	"github.com/morningstar-47/intelligence-gateway/internal/health"
	"github.com/morningstar-47/intelligence-gateway/internal/httpserver"
	"github.com/morningstar-47/intelligence-gateway/internal/metrics"
	"github.com/morningstar-47/intelligence-gateway/internal/ratelimit"
	"github.com/morningstar-47/intelligence-gateway/internal/routetable"
	"github.com/morningstar-47/intelligence-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	table, err := buildRouteTable(cfg)
	if err != nil {
		log.Error("Failed to build route table", slog.Any("err", err))
		os.Exit(1)
	}

	requestTimeout, err := time.ParseDuration(cfg.Proxy.RequestTimeout)
	if err != nil {
		log.Error("Invalid request timeout", slog.Any("err", err))
		os.Exit(1)
	}
	healthTimeout, err := time.ParseDuration(cfg.Proxy.HealthTimeout)
	if err != nil {
		log.Error("Invalid health timeout", slog.Any("err", err))
		os.Exit(1)
	}

	tracker := health.NewTracker(log, healthTimeout)

	collector := metrics.NewCollector(1024, log)
	collector.Start(ctx)

	limiter, err := createLimiter(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to create rate limiter", slog.Any("err", err))
		os.Exit(1)
	}

	proxyHandler := handler.NewProxyHandler(
		log, table, tracker, collector, cfg.Proxy.Secret, cfg.Proxy.Mount, requestTimeout)

	internalHandler := handler.NewInternalHandler(
		log, table, tracker, internalRoutes(cfg.Proxy.Mount))

	router := setupRouter(cfg, log, proxyHandler, internalHandler, limiter, collector)

	srv, err := httpserver.New(cfg.Server.Address, router, requestTimeout)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Gateway listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("routes", len(table.Routes())),
		slog.Bool("rate_limiting", cfg.RateLimit.Enabled))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRouteTable(cfg *config.Config) (*routetable.Table, error) {
	routes := make([]routetable.Route, 0, len(cfg.Routes))

	for _, rc := range cfg.Routes {
		backend, err := url.Parse(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", rc.Prefix, err)
		}

		healthPath := rc.HealthPath
		if healthPath == "" {
			healthPath = config.DefaultHealthPath
		}

		routes = append(routes, routetable.Route{
			Prefix:     rc.Prefix,
			Backend:    backend,
			HealthPath: healthPath,
		})
	}

	return routetable.New(routes)
}

func createLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	period, err := time.ParseDuration(cfg.RateLimit.Period)
	if err != nil {
		return nil, err
	}

	switch cfg.RateLimit.Store {
	case config.RateLimitStoreRedis:
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info("Rate limiter using redis store", slog.String("addr", opts.Addr))
		return ratelimit.NewRedisLimiter(redis.NewClient(opts), cfg.RateLimit.Limit, period), nil

	case config.RateLimitStoreMemory:
		log.Warn("Rate limiter using in-memory store; not suitable for multi-instance deployments")
		limiter := ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, period)
		limiter.StartJanitor(ctx, time.Minute)
		return limiter, nil

	default:
		return nil, fmt.Errorf("unknown rate limit store: %s", cfg.RateLimit.Store)
	}
}

func internalRoutes(mount string) []string {
	return []string{
		"/",
		"/health",
		"/metrics",
		mount + "/health",
		mount + "/routes",
		mount + "/services/health",
	}
}
