package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/morningstar-47/intelligence-gateway/internal/handler"
	"github.com/morningstar-47/intelligence-gateway/internal/health"
	"github.com/morningstar-47/intelligence-gateway/internal/routetable"
)

var _ = Describe("InternalHandler", func() {
	var (
		log     *slog.Logger
		tracker *health.Tracker
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		tracker = health.NewTracker(log, time.Second)
	})

	newInternal := func(routes []routetable.Route) *handler.InternalHandler {
		table, err := routetable.New(routes)
		Expect(err).NotTo(HaveOccurred())
		return handler.NewInternalHandler(log, table, tracker,
			[]string{"/", "/health", "/api/health", "/api/routes", "/api/services/health", "/metrics"})
	}

	Describe("Health", func() {
		It("should report the gateway as healthy", func() {
			h := newInternal([]routetable.Route{
				{Prefix: "/auth", Backend: mustParseURL("http://auth:8000"), HealthPath: "/health"},
			})

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(Equal("healthy"))
			Expect(body["service"]).To(Equal("api-gateway"))
		})
	})

	Describe("Routes", func() {
		It("should list configured and internal routes", func() {
			h := newInternal([]routetable.Route{
				{Prefix: "/auth", Backend: mustParseURL("http://auth:8000"), HealthPath: "/health"},
				{Prefix: "/reports", Backend: mustParseURL("http://reports:8001"), HealthPath: "/status"},
			})

			w := httptest.NewRecorder()
			h.Routes(w, httptest.NewRequest(http.MethodGet, "/api/routes", nil))

			Expect(w.Code).To(Equal(http.StatusOK))

			var body struct {
				Routes []struct {
					Prefix         string `json:"prefix"`
					ServiceURL     string `json:"service_url"`
					HealthEndpoint string `json:"health_endpoint"`
				} `json:"routes"`
				InternalRoutes []string `json:"internal_routes"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())

			Expect(body.Routes).To(HaveLen(2))
			Expect(body.Routes[0].Prefix).To(Equal("/auth"))
			Expect(body.Routes[0].ServiceURL).To(Equal("http://auth:8000"))
			Expect(body.Routes[1].HealthEndpoint).To(Equal("/status"))
			Expect(body.InternalRoutes).To(ContainElement("/api/services/health"))
		})
	})

	Describe("ServicesHealth", func() {
		It("should report an unhealthy service with its error", func() {
			healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer healthy.Close()

			unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer unhealthy.Close()

			h := newInternal([]routetable.Route{
				{Prefix: "/auth", Backend: mustParseURL(healthy.URL), HealthPath: "/health"},
				{Prefix: "/map", Backend: mustParseURL(unhealthy.URL), HealthPath: "/health"},
			})

			w := httptest.NewRecorder()
			h.ServicesHealth(w, httptest.NewRequest(http.MethodGet, "/api/services/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))

			var body struct {
				GatewayStatus string `json:"gateway_status"`
				Services      map[string]struct {
					URL     string `json:"url"`
					Healthy bool   `json:"is_healthy"`
					Error   string `json:"error"`
				} `json:"services"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())

			Expect(body.GatewayStatus).To(Equal("healthy"))
			Expect(body.Services["/auth"].Healthy).To(BeTrue())
			Expect(body.Services["/map"].Healthy).To(BeFalse())
			Expect(body.Services["/map"].Error).To(ContainSubstring("503"))
		})
	})
})
