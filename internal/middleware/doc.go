// Package middleware holds the gateway-wide HTTP middleware: request-ID
// correlation and request logging with timing.
package middleware
