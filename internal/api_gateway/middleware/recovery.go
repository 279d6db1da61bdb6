package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery middleware catches panics, logs them with stack traces, and returns a 500 error
// with correlation ID (if available) to maintain request traceability
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				attrs := []any{
					"error", r,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				}
				if a := GetActor(c); a != nil {
					attrs = append(attrs, "user_id", a.UserID)
				}
				logger.Error("Panic recovered", attrs...)

				abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
			}
		}()
		c.Next()
	}
}
