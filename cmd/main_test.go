package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/morningstar-47/intelligence-gateway/config"
	"github.com/morningstar-47/intelligence-gateway/internal/handler"
	"github.com/morningstar-47/intelligence-gateway/internal/health"
	"github.com/morningstar-47/intelligence-gateway/internal/metrics"
)

func TestMain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Suite")
}

var _ = Describe("buildRouteTable", func() {
	It("should build a table from configured routes", func() {
		cfg := &config.Config{
			Routes: []config.RouteConfig{
				{Prefix: "/auth", URL: "http://auth:8000", HealthPath: "/health"},
				{Prefix: "/reports", URL: "http://reports:8001", HealthPath: "/health"},
			},
		}

		table, err := buildRouteTable(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Routes()).To(HaveLen(2))
	})

	It("should default an empty health path", func() {
		cfg := &config.Config{
			Routes: []config.RouteConfig{
				{Prefix: "/auth", URL: "http://auth:8000"},
			},
		}

		table, err := buildRouteTable(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Routes()[0].HealthPath).To(Equal("/health"))
	})

	It("should fail when no routes are configured", func() {
		_, err := buildRouteTable(&config.Config{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("createLimiter", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
	})

	It("should return nil when rate limiting is disabled", func() {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{Enabled: false}}

		limiter, err := createLimiter(context.Background(), cfg, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(limiter).To(BeNil())
	})

	It("should create a memory limiter", func() {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{
			Enabled: true,
			Store:   config.RateLimitStoreMemory,
			Limit:   10,
			Period:  "60s",
		}}

		limiter, err := createLimiter(context.Background(), cfg, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(limiter).NotTo(BeNil())
	})

	It("should create a redis limiter from a valid URL", func() {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{
			Enabled:  true,
			Store:    config.RateLimitStoreRedis,
			RedisURL: "redis://localhost:6379/0",
			Limit:    10,
			Period:   "60s",
		}}

		limiter, err := createLimiter(context.Background(), cfg, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(limiter).NotTo(BeNil())
	})

	It("should reject an invalid redis URL", func() {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{
			Enabled:  true,
			Store:    config.RateLimitStoreRedis,
			RedisURL: "not-a-url",
			Limit:    10,
			Period:   "60s",
		}}

		_, err := createLimiter(context.Background(), cfg, log)
		Expect(err).To(HaveOccurred())
	})

	It("should reject an invalid period", func() {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{
			Enabled: true,
			Store:   config.RateLimitStoreMemory,
			Limit:   10,
			Period:  "sixty",
		}}

		_, err := createLimiter(context.Background(), cfg, log)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("setupRouter", func() {
	var (
		cfg         *config.Config
		log         *slog.Logger
		collector   *metrics.Collector
		mockBackend *httptest.Server
		cancel      context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))

		mockBackend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Write([]byte("auth backend"))
		}))

		cfg = &config.Config{
			Server:  config.ServerConfig{Address: ":8080", Environment: config.EnvDev},
			Logging: config.LoggingConfig{Level: config.LogLevelInfo},
			Routes: []config.RouteConfig{
				{Prefix: "/auth", URL: mockBackend.URL, HealthPath: "/health"},
			},
			RateLimit: config.RateLimitConfig{
				Enabled: true,
				Store:   config.RateLimitStoreMemory,
				Limit:   2,
				Period:  "60s",
			},
			Proxy: config.ProxyConfig{
				Secret:         "test-secret",
				Mount:          "/api",
				RequestTimeout: "5s",
				HealthTimeout:  "1s",
			},
		}

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(64, log)
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
		mockBackend.Close()
	})

	newRouter := func() http.Handler {
		table, err := buildRouteTable(cfg)
		Expect(err).NotTo(HaveOccurred())

		tracker := health.NewTracker(log, time.Second)

		limiter, err := createLimiter(context.Background(), cfg, log)
		Expect(err).NotTo(HaveOccurred())

		proxyHandler := handler.NewProxyHandler(
			log, table, tracker, collector, cfg.Proxy.Secret, cfg.Proxy.Mount, 5*time.Second)
		internalHandler := handler.NewInternalHandler(
			log, table, tracker, internalRoutes(cfg.Proxy.Mount))

		return setupRouter(cfg, log, proxyHandler, internalHandler, limiter, collector)
	}

	get := func(router http.Handler, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "10.0.0.1:52000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("should serve the gateway health endpoint", func() {
		w := get(newRouter(), "/health")

		Expect(w.Code).To(Equal(http.StatusOK))

		var body map[string]string
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("healthy"))
	})

	It("should serve internal endpoints before the proxy path", func() {
		w := get(newRouter(), "/api/routes")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("/auth"))
	})

	It("should proxy requests under the mount prefix", func() {
		w := get(newRouter(), "/api/auth/ping")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("auth backend"))
	})

	It("should enforce the rate limit across the router", func() {
		router := newRouter()

		Expect(get(router, "/api/auth/ping").Code).To(Equal(http.StatusOK))
		Expect(get(router, "/api/auth/ping").Code).To(Equal(http.StatusOK))

		w := get(router, "/api/auth/ping")
		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
	})

	It("should attach rate limit headers and a request ID to responses", func() {
		w := get(newRouter(), "/api/auth/ping")

		Expect(w.Header().Get("X-RateLimit-Remaining")).NotTo(BeEmpty())
		Expect(w.Header().Get("X-RateLimit-Reset")).NotTo(BeEmpty())
		Expect(w.Header().Get("X-Request-ID")).NotTo(BeEmpty())
	})

	It("should skip the rate limiter when disabled", func() {
		cfg.RateLimit.Enabled = false
		router := newRouter()

		for i := 0; i < 5; i++ {
			Expect(get(router, "/api/auth/ping").Code).To(Equal(http.StatusOK))
		}
		Expect(get(router, "/api/auth/ping").Header().Get("X-RateLimit-Remaining")).To(BeEmpty())
	})

	It("should count rate limited requests in metrics", func() {
		router := newRouter()

		for i := 0; i < 3; i++ {
			get(router, "/api/auth/ping")
		}

		Eventually(func() int64 {
			return collector.Snapshot().RateLimited
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))
	})
})
