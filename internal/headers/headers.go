// Package headers builds the outbound header set for proxied requests:
// connection-scoped headers are stripped, forwarding metadata is appended,
// and the gateway secret is attached so downstream services can tell
// gateway traffic from direct traffic.
package headers

import "net/http"

// GatewaySecretHeader carries the shared secret on every forwarded request.
// It is a trust marker, not a signature; the value is a deployment secret.
const GatewaySecretHeader = "X-Gateway-Secret"

// ForwardedForHeader accumulates the client IP chain.
const ForwardedForHeader = "X-Forwarded-For"

// stripped headers are connection-scoped or recomputed by the outbound
// transport and must never be copied through.
var stripped = []string{"Host", "Connection", "Content-Length"}

// Outbound clones the inbound headers and applies the forwarding rules.
// The inbound header map is never modified.
func Outbound(in http.Header, clientIP, secret string) http.Header {
	out := in.Clone()
	if out == nil {
		out = make(http.Header)
	}

	for _, name := range stripped {
		out.Del(name)
	}

	if prior := out.Get(ForwardedForHeader); prior != "" {
		out.Set(ForwardedForHeader, prior+", "+clientIP)
	} else {
		out.Set(ForwardedForHeader, clientIP)
	}

	out.Set(GatewaySecretHeader, secret)

	return out
}
