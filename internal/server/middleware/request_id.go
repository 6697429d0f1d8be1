package middleware

import (
	"context"

	"github.com/devtrack-app/devtrack/internal/pkg/ctxkey"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries an id, honoring one supplied by
// the caller. The id lands in the request context and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			if v, ok := c.Request.Context().Value(ctxkey.RequestID).(string); ok && v != "" {
				id = v
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), ctxkey.RequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
