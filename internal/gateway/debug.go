package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authgateway/internal/cryptoutil"
)

// debugSessions answers the admin introspection endpoint: aggregate counts
// only, never session contents, guarded by a bcrypt-hashed bearer token
// configured out of band. It supplements spec.md's core properties as
// operational tooling, not an audited feature.
func (h *Handler) debugSessions(c *gin.Context) {
	if h.cfg.AdminTokenHash == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	presented := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if presented == "" || !cryptoutil.VerifyAdminToken(presented, h.cfg.AdminTokenHash) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": h.registry.Len(),
	})
}
