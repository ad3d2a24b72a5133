package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Server wraps http.Server with validation and graceful shutdown.
type Server struct {
	server *http.Server
}

// timeoutHeadroom is added on top of the proxy request timeout when
// deriving the connection deadlines, leaving room to relay the response.
const timeoutHeadroom = 15 * time.Second

// New creates a new HTTP server with the given address and handler.
// The address is validated before creating the server. requestTimeout is
// the upstream proxy deadline; the server's own read and write deadlines
// are derived from it so a slow backend reaches the timeout mapping in
// the handler instead of having the connection cut underneath it.
func New(addr string, handler http.Handler, requestTimeout time.Duration) (*Server, error) {
	if err := validateHost(addr); err != nil {
		return nil, err
	}
	if requestTimeout <= 0 {
		return nil, validation.NewError("validation_invalid_timeout", "request timeout must be positive")
	}

	srv := &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  requestTimeout + timeoutHeadroom,
			WriteTimeout: requestTimeout + timeoutHeadroom,
			IdleTimeout:  60 * time.Second,
		},
	}

	return srv, nil
}

// WriteTimeout reports the derived connection write deadline.
func (s *Server) WriteTimeout() time.Duration {
	return s.server.WriteTimeout
}

// Start begins listening for HTTP requests.
// Returns an error unless the server is shut down cleanly.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the server with a 5-second timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func validateHost(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)

	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
