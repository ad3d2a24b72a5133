package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/morningstar-47/intelligence-gateway/internal/routetable"
)

// DefaultStaleAfter is how old a cached status may be before a background
// recheck is triggered.
const DefaultStaleAfter = 60 * time.Second

// Status is the last known health of a single route.
type Status struct {
	Healthy     bool      `json:"is_healthy"`
	LastChecked time.Time `json:"last_checked"`
	LastError   string    `json:"error,omitempty"`
}

// Tracker caches per-route health statuses. Reads never block on a probe;
// probes replace the whole status entry, so readers see either the previous
// or the new value, never a partial update.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]Status
	inflight map[string]bool

	client     *http.Client
	logger     *slog.Logger
	staleAfter time.Duration
}

func NewTracker(logger *slog.Logger, probeTimeout time.Duration) *Tracker {
	return &Tracker{
		statuses:   make(map[string]Status),
		inflight:   make(map[string]bool),
		client:     &http.Client{Timeout: probeTimeout},
		logger:     logger,
		staleAfter: DefaultStaleAfter,
	}
}

// Healthy returns the last known health of the given prefix. A route that
// has never been probed is reported healthy so a cold start does not shed
// traffic.
func (t *Tracker) Healthy(prefix string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, ok := t.statuses[prefix]
	if !ok {
		return true
	}
	return status.Healthy
}

// Status returns the cached status for the given prefix, if any.
func (t *Tracker) Status(prefix string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, ok := t.statuses[prefix]
	return status, ok
}

// Refresh probes the route's health endpoint and replaces its cached status.
// Probe failures are recorded, never returned; the boolean is the new health.
func (t *Tracker) Refresh(ctx context.Context, route routetable.Route) bool {
	status := Status{LastChecked: time.Now()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route.HealthURL(), nil)
	if err != nil {
		status.LastError = err.Error()
	} else if res, err := t.client.Do(req); err != nil {
		status.LastError = err.Error()
	} else {
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			status.Healthy = true
		} else {
			status.LastError = fmt.Sprintf("health endpoint returned status %d", res.StatusCode)
		}
	}

	t.mu.Lock()
	prev, known := t.statuses[route.Prefix]
	t.statuses[route.Prefix] = status
	t.mu.Unlock()

	if !known || prev.Healthy != status.Healthy {
		if status.Healthy {
			t.logger.Info("Service is up",
				slog.String("prefix", route.Prefix),
				slog.String("backend", route.Backend.String()))
		} else {
			t.logger.Warn("Service is down",
				slog.String("prefix", route.Prefix),
				slog.String("backend", route.Backend.String()),
				slog.String("error", status.LastError))
		}
	}

	return status.Healthy
}

// MaybeRefresh spawns a detached probe when the cached status is stale or
// unhealthy. The caller is never blocked and never observes the result of
// the probe it triggered; the next request reads the updated cache.
func (t *Tracker) MaybeRefresh(route routetable.Route) {
	t.mu.Lock()
	status, known := t.statuses[route.Prefix]
	fresh := known && status.Healthy && time.Since(status.LastChecked) <= t.staleAfter
	if fresh || t.inflight[route.Prefix] {
		t.mu.Unlock()
		return
	}
	t.inflight[route.Prefix] = true
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			delete(t.inflight, route.Prefix)
			t.mu.Unlock()
		}()
		// Detached from the request lifecycle on purpose; the probe
		// client's own timeout bounds it.
		t.Refresh(context.Background(), route)
	}()
}

// CheckAll probes every route concurrently and returns the refreshed
// statuses keyed by prefix.
func (t *Tracker) CheckAll(ctx context.Context, routes []routetable.Route) map[string]Status {
	var wg sync.WaitGroup
	for _, route := range routes {
		wg.Add(1)
		go func(route routetable.Route) {
			defer wg.Done()
			t.Refresh(ctx, route)
		}(route)
	}
	wg.Wait()

	t.mu.RLock()
	defer t.mu.RUnlock()

	statuses := make(map[string]Status, len(routes))
	for _, route := range routes {
		statuses[route.Prefix] = t.statuses[route.Prefix]
	}
	return statuses
}
