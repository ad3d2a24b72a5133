// Package handler implements the gateway's HTTP handlers: the proxy
// dispatcher that forwards requests to downstream services, and the
// internal endpoints the gateway answers itself.
package handler
