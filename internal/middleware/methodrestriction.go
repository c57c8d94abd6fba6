package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AllowedHTTPMethods restricts requests to the methods the forwarder and
// tunnel actually need. TRACE/TRACK/CONNECT are rejected implicitly.
func AllowedHTTPMethods() gin.HandlerFunc {
	allowedMethods := map[string]bool{
		http.MethodGet:     true,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
		http.MethodOptions: true,
		http.MethodHead:    true,
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if !allowedMethods[method] {
			c.Header("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			c.JSON(http.StatusMethodNotAllowed, gin.H{
				"error":   "Method not allowed",
				"message": "The HTTP method " + method + " is not allowed for this resource.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// DisallowedHTTPMethods blocks TRACE/TRACK/CONNECT explicitly, for use ahead
// of AllowedHTTPMethods when the whitelist alone isn't in effect.
func DisallowedHTTPMethods() gin.HandlerFunc {
	disallowedMethods := map[string]bool{
		"TRACE":   true,
		"TRACK":   true,
		"CONNECT": true,
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if disallowedMethods[method] {
			c.JSON(http.StatusMethodNotAllowed, gin.H{
				"error":   "Method not allowed",
				"message": "The HTTP method " + method + " is not permitted.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
