package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Options configures the rate-limit middleware. Limit and Period mirror the
// limiter's own configuration; they are needed here to synthesize a
// fail-open decision when the store errors.
type Options struct {
	Limiter Limiter
	Limit   int
	Period  time.Duration
	Logger  *slog.Logger

	// OnReject, when set, is called for every rejected request.
	OnReject func(r *http.Request)
}

// Middleware enforces the rate limit before the request reaches the proxy
// path. Every response carries X-RateLimit-Remaining and X-RateLimit-Reset;
// rejected requests get a plain-text 429. A failing store allows the
// request through with the full limit reported.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIdentity(r)

			dec, err := opts.Limiter.Check(r.Context(), clientID)
			if err != nil {
				opts.Logger.Error("rate limit store failure, allowing request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("err", err))
				dec = Decision{
					Allowed:   true,
					Remaining: opts.Limit,
					Reset:     time.Now().Add(opts.Period).Unix(),
				}
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(dec.Reset, 10))

			if !dec.Allowed {
				opts.Logger.Warn("rate limit exceeded",
					slog.String("client", clientID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				if opts.OnReject != nil {
					opts.OnReject(r)
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIdentity keys the window by bearer credential when one is present,
// falling back to the client IP. The credential is used as an opaque
// string; it is never parsed or verified here.
func clientIdentity(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
