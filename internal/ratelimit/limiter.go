package ratelimit

import "context"

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// Reset is the unix time in seconds at which the window will next
	// admit a request from this client.
	Reset int64
}

// Limiter decides whether a client may issue another request right now.
// Implementations must keep the trim-count-record sequence atomic per
// client so two concurrent requests cannot both slip past the limit.
type Limiter interface {
	Check(ctx context.Context, clientID string) (Decision, error)
}
