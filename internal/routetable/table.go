package routetable

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoRoute is returned by Resolve when no configured prefix matches the
// request path.
var ErrNoRoute = errors.New("no service configured")

// Route maps a URL path prefix to a downstream service.
type Route struct {
	Prefix     string
	Backend    *url.URL
	HealthPath string
}

// HealthURL returns the absolute URL of the route's health endpoint.
func (r Route) HealthURL() string {
	return r.Backend.ResolveReference(&url.URL{Path: r.HealthPath}).String()
}

// Table resolves request paths to routes. The first configured prefix that
// matches wins, so more specific prefixes must be listed before the ones
// they overlap with.
type Table struct {
	routes []Route
}

// New builds a Table from the given routes, preserving their order.
func New(routes []Route) (*Table, error) {
	if len(routes) == 0 {
		return nil, errors.New("at least one route is required")
	}

	seen := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		if route.Prefix == "" || !strings.HasPrefix(route.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with a slash", route.Prefix)
		}
		if route.Backend == nil || route.Backend.Host == "" {
			return nil, fmt.Errorf("route %s is missing a backend URL", route.Prefix)
		}
		if _, ok := seen[route.Prefix]; ok {
			return nil, fmt.Errorf("duplicate route prefix %s", route.Prefix)
		}
		seen[route.Prefix] = struct{}{}
	}

	table := &Table{routes: make([]Route, len(routes))}
	copy(table.routes, routes)
	return table, nil
}

// Resolve returns the first route whose prefix matches the given path.
// The path is normalized to start with a slash before matching.
func (t *Table) Resolve(path string) (Route, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	for _, route := range t.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route, nil
		}
	}

	return Route{}, fmt.Errorf("%w for path: %s", ErrNoRoute, path)
}

// Routes returns a copy of the configured routes in resolution order.
func (t *Table) Routes() []Route {
	routes := make([]Route, len(t.routes))
	copy(routes, t.routes)
	return routes
}
