package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// Recovery converts panics into the standard 500 JSON envelope. The panic
// value and stack go to gin's error writer; the response body never leaks
// internals. If the handler already wrote a response the body is left alone.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				fmt.Fprintf(gin.DefaultErrorWriter, "panic recovered: %v\n%s\n", recovered, debug.Stack())
				if c.Writer.Written() {
					c.Abort()
					return
				}
				response.ErrorWithDetails(c, http.StatusInternalServerError,
					infraerrors.UnknownMessage, infraerrors.UnknownReason, nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}
