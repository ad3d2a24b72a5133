// Package ratelimit implements per-client sliding-window rate limiting for
// the gateway. Two interchangeable stores back the same contract: a Redis
// sorted set for multi-instance deployments and an in-process map for
// single-instance or development use. Store failures fail open so a broken
// counter store never takes the proxy down with it.
package ratelimit
