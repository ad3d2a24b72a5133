// Package metrics provides real-time metrics collection for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect, per
// route prefix:
//   - Proxied request counts
//   - HTTP status code distribution
//   - Response times with percentile calculations (P50, P95, P99)
//   - Route misses and rate-limit rejections
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are sent via buffered channels with
// non-blocking semantics to prevent performance degradation under load.
package metrics
