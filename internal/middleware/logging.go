package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProcessTimeHeader reports the gateway's handling time in seconds.
const ProcessTimeHeader = "X-Process-Time"

type timedRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	start       time.Time
}

func (r *timedRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.statusCode = code
	r.Header().Set(ProcessTimeHeader,
		strconv.FormatFloat(time.Since(r.start).Seconds(), 'f', 4, 64))
	r.ResponseWriter.WriteHeader(code)
}

func (r *timedRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// RequestLogger logs each request on arrival and completion, with the
// client IP, status, and handling time.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIP(r)

			logger.Info("Request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client", clientIP),
				slog.String("request_id", GetRequestID(r.Context())))

			wrapped := &timedRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				start:          time.Now(),
			}
			next.ServeHTTP(wrapped, r)

			logger.Info("Request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client", clientIP),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(wrapped.start)),
				slog.String("request_id", GetRequestID(r.Context())))
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
