package middleware

import "time"

const (
	// CleanupInterval is how often RateLimiter sweeps its per-IP limiter map.
	CleanupInterval = 5 * time.Minute

	// DefaultSocketKeyRequestsPerMinute bounds StrictMiddleware's use ahead
	// of socket-key issuance.
	DefaultSocketKeyRequestsPerMinute = 30
)
