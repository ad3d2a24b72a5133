package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/morningstar-47/intelligence-gateway/internal/headers"
	"github.com/morningstar-47/intelligence-gateway/internal/health"
	"github.com/morningstar-47/intelligence-gateway/internal/metrics"
	"github.com/morningstar-47/intelligence-gateway/internal/middleware"
	"github.com/morningstar-47/intelligence-gateway/internal/routetable"
)

// ProxyHandler resolves inbound requests against the route table and
// forwards them to the matched downstream service. Redirects returned by
// the backend are followed by the gateway itself, so the original client
// always receives the final response.
type ProxyHandler struct {
	logger    *slog.Logger
	table     *routetable.Table
	tracker   *health.Tracker
	collector *metrics.Collector
	secret    string
	mount     string
	client    *http.Client
}

func NewProxyHandler(
	logger *slog.Logger,
	table *routetable.Table,
	tracker *health.Tracker,
	collector *metrics.Collector,
	secret string,
	mount string,
	requestTimeout time.Duration,
) *ProxyHandler {
	return &ProxyHandler{
		logger:    logger,
		table:     table,
		tracker:   tracker,
		collector: collector,
		secret:    secret,
		mount:     mount,
		// The default CheckRedirect follows up to 10 redirects, which
		// is the relay policy here.
		client: &http.Client{Timeout: requestTimeout},
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	path := strings.TrimPrefix(r.URL.Path, h.mount)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	route, err := h.table.Resolve(path)
	if err != nil {
		h.logger.Warn("No route for path",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.String("client", clientIP))
		h.emitEvent(metrics.MetricEvent{Type: metrics.EventRouteMiss, Timestamp: time.Now()})
		http.Error(w, fmt.Sprintf("No service configured for path: %s", path), http.StatusNotFound)
		return
	}

	// Cached read plus a detached recheck when stale; the request is
	// forwarded either way rather than shed on a possibly outdated status.
	if !h.tracker.Healthy(route.Prefix) {
		h.logger.Warn("Forwarding to a backend last seen unhealthy",
			slog.String("prefix", route.Prefix),
			slog.String("backend", route.Backend.String()))
	}
	h.tracker.MaybeRefresh(route)

	targetURL := strings.TrimRight(route.Backend.String(), "/") + path
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		h.logger.Error("Failed to build outbound request",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.String("target", targetURL),
			slog.Any("err", err))
		writeInternalError(w)
		return
	}
	// The address appended to X-Forwarded-For is the direct peer, not the
	// first hop already named in the header.
	out.Header = headers.Outbound(r.Header, remoteIP(r), h.secret)
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		out.Header.Set(middleware.RequestIDHeader, reqID)
	}
	out.ContentLength = r.ContentLength
	if r.ContentLength == 0 {
		// A zero-length inbound body must not turn into a chunked
		// outbound one.
		out.Body = http.NoBody
	}

	start := time.Now()
	res, err := h.client.Do(out)
	if err != nil {
		h.writeProxyError(w, r, targetURL, err)
		return
	}
	defer res.Body.Close()

	for name, values := range res.Header {
		// The outbound transport reframes the response body itself.
		if name == "Content-Length" || name == "Transfer-Encoding" || name == "Connection" {
			continue
		}
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}

	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		h.logger.Warn("Failed to relay full response body",
			slog.String("target", targetURL),
			slog.Any("err", err))
	}

	duration := time.Since(start)
	h.logger.Info("Proxied request",
		slog.String("method", r.Method),
		slog.String("path", path),
		slog.String("target", targetURL),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", duration))

	h.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventProxied,
		Timestamp:  time.Now(),
		Route:      route.Prefix,
		Duration:   duration,
		StatusCode: res.StatusCode,
	})
}

// writeProxyError maps outbound call failures to client-visible statuses:
// deadline exceeded becomes 504, network failures become 502, anything else
// a generic 500. A cancelled inbound request gets no response at all since
// the client is gone.
func (h *ProxyHandler) writeProxyError(w http.ResponseWriter, r *http.Request, targetURL string, err error) {
	if errors.Is(err, context.Canceled) {
		h.logger.Debug("Client disconnected before backend responded",
			slog.String("method", r.Method),
			slog.String("target", targetURL))
		return
	}

	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()):
		h.logger.Error("Backend timeout",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("target", targetURL),
			slog.Any("err", err))
		http.Error(w, "Service timeout. Please try again later.", http.StatusGatewayTimeout)

	case errors.As(err, &urlErr):
		h.logger.Error("Backend unreachable",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("target", targetURL),
			slog.Any("err", err))
		http.Error(w, "Unable to reach the service. Please try again later.", http.StatusBadGateway)

	default:
		h.logger.Error("Unexpected proxy error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("target", targetURL),
			slog.Any("err", err))
		writeInternalError(w)
	}
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "An internal error occurred while processing your request.",
	})
}

func (h *ProxyHandler) emitEvent(event metrics.MetricEvent) {
	if h.collector == nil {
		return
	}
	h.collector.Emit(event)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
