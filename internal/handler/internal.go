package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/morningstar-47/intelligence-gateway/internal/health"
	"github.com/morningstar-47/intelligence-gateway/internal/routetable"
)

const (
	gatewayName    = "Intelligence Service API Gateway"
	gatewayService = "api-gateway"
	gatewayVersion = "1.0.0"
)

// InternalHandler serves the endpoints the gateway answers itself. These
// are matched exactly, before any proxy resolution is attempted.
type InternalHandler struct {
	logger         *slog.Logger
	table          *routetable.Table
	tracker        *health.Tracker
	internalRoutes []string
}

func NewInternalHandler(logger *slog.Logger, table *routetable.Table, tracker *health.Tracker, internalRoutes []string) *InternalHandler {
	return &InternalHandler{
		logger:         logger,
		table:          table,
		tracker:        tracker,
		internalRoutes: internalRoutes,
	}
}

// Root reports that the gateway process is up.
func (h *InternalHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    gatewayName,
		"version": gatewayVersion,
		"status":  "running",
	})
}

// Health is the gateway's own health endpoint.
func (h *InternalHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": gatewayService,
		"version": gatewayVersion,
	})
}

type routeInfo struct {
	Prefix         string `json:"prefix"`
	ServiceURL     string `json:"service_url"`
	HealthEndpoint string `json:"health_endpoint"`
}

type routesResponse struct {
	Routes         []routeInfo `json:"routes"`
	InternalRoutes []string    `json:"internal_routes"`
}

// Routes lists the configured prefixes and backends.
func (h *InternalHandler) Routes(w http.ResponseWriter, r *http.Request) {
	routes := h.table.Routes()

	resp := routesResponse{
		Routes:         make([]routeInfo, 0, len(routes)),
		InternalRoutes: h.internalRoutes,
	}
	for _, route := range routes {
		resp.Routes = append(resp.Routes, routeInfo{
			Prefix:         route.Prefix,
			ServiceURL:     route.Backend.String(),
			HealthEndpoint: route.HealthPath,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type serviceHealth struct {
	URL         string    `json:"url"`
	Healthy     bool      `json:"is_healthy"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

type servicesHealthResponse struct {
	GatewayStatus string                   `json:"gateway_status"`
	Services      map[string]serviceHealth `json:"services"`
}

// ServicesHealth probes every configured route and returns the aggregate.
// Unlike the proxy path, this endpoint does wait for the probes.
func (h *InternalHandler) ServicesHealth(w http.ResponseWriter, r *http.Request) {
	routes := h.table.Routes()
	statuses := h.tracker.CheckAll(r.Context(), routes)

	resp := servicesHealthResponse{
		GatewayStatus: "healthy",
		Services:      make(map[string]serviceHealth, len(routes)),
	}
	for _, route := range routes {
		status := statuses[route.Prefix]
		resp.Services[route.Prefix] = serviceHealth{
			URL:         route.Backend.String(),
			Healthy:     status.Healthy,
			LastChecked: status.LastChecked,
			Error:       status.LastError,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
