package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds the baseline response headers every response should
// carry. It deliberately stops short of a Content-Security-Policy: the
// default dispatch path forwards whatever the sidecar returns byte-for-byte
// (§4.I), and a CSP set here would apply to content this process never
// parses or controls, breaking pages the sidecar serves legitimately.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")

		if c.Request.URL.Path != "/health" {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
			c.Header("Pragma", "no-cache")
		}

		c.Header("Server", "")

		c.Next()
	}
}
