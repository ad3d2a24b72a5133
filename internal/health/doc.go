// Package health implements cached health checking for downstream services.
// Statuses are read without blocking and refreshed in the background when
// stale, so a slow or dead backend never delays the request that noticed it.
package health
