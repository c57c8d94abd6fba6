package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSecurityHeaders(t *testing.T, path string) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET(path, func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeadersBaseline(t *testing.T) {
	headers := runSecurityHeaders(t, "/test")

	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
	assert.Equal(t, "none", headers.Get("X-Permitted-Cross-Domain-Policies"))
	assert.Equal(t, "", headers.Get("Server"))
}

func TestSecurityHeadersNoCacheOnOrdinaryPaths(t *testing.T) {
	headers := runSecurityHeaders(t, "/test")
	require.NotEmpty(t, headers.Get("Cache-Control"))
	assert.Contains(t, headers.Get("Cache-Control"), "no-store")
}

func TestSecurityHeadersSkipsCacheControlOnHealth(t *testing.T) {
	headers := runSecurityHeaders(t, "/health")
	assert.Empty(t, headers.Get("Cache-Control"))
}

func TestSecurityHeadersDoesNotSetCSP(t *testing.T) {
	headers := runSecurityHeaders(t, "/test")
	assert.Empty(t, headers.Get("Content-Security-Policy"), "forwarded content must not inherit a CSP this process never parses")
}
