package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TimeoutConfig configures per-request deadlines.
type TimeoutConfig struct {
	Timeout       time.Duration
	ErrorMessage  string
	ExcludedPaths []string
}

// DefaultTimeoutConfig returns a 30-second deadline with no path exclusions.
// WebSocket upgrades are excluded unconditionally by Timeout itself, since a
// tunnel is dispatched dynamically off the Upgrade header (§4.F) rather than
// a fixed path prefix and is expected to run far longer than any ordinary
// request.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout:      30 * time.Second,
		ErrorMessage: "Request timeout",
	}
}

// Timeout aborts a request with 408 once config.Timeout elapses, except for
// WebSocket upgrades and any path in config.ExcludedPaths.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	excluded := make(map[string]bool)
	for _, path := range config.ExcludedPaths {
		excluded[path] = true
	}

	return func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for excludedPath := range excluded {
			if len(path) >= len(excludedPath) && path[:len(excludedPath)] == excludedPath {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			c.Next()
			close(finished)
		}()

		select {
		case <-finished:
			return
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error":   config.ErrorMessage,
				"message": "The request took too long to process",
				"timeout": config.Timeout.String(),
			})
			return
		}
	}
}

// TimeoutWithDuration is Timeout with only the duration overridden.
func TimeoutWithDuration(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	return Timeout(config)
}
