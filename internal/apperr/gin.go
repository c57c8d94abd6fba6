package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authgateway/internal/logging"
)

// AbortWithError writes the error's JSON response and aborts the Gin chain.
func AbortWithError(c *gin.Context, err *GatewayError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

// Recovery recovers from panics in handlers and answers with a generic
// internal error instead of letting the connection die uncleanly.
func Recovery() gin.HandlerFunc {
	log := logging.Gateway()
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("recovered from panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "INTERNAL_SERVER_ERROR",
					Message: "an unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// Handler turns any error left on the Gin context by a handler into the
// standard JSON error response, logging 5xx at error level and 4xx at warn.
func Handler() gin.HandlerFunc {
	log := logging.Gateway()
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		gwErr, ok := err.(*GatewayError)
		if !ok {
			gwErr = New("INTERNAL_SERVER_ERROR", "an unexpected error occurred")
		}

		event := log.Warn()
		if gwErr.StatusCode >= 500 {
			event = log.Error()
		}
		event.Str("code", gwErr.Code).Str("details", gwErr.Details).Msg(gwErr.Message)

		if !c.Writer.Written() {
			c.JSON(gwErr.StatusCode, gwErr.ToResponse())
		}
	}
}
