package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger middleware logs one line per request. Client errors are logged at warn,
// server errors at error.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		requestLogger := logger
		if correlationID := GetCorrelationID(c); correlationID != "" {
			requestLogger = logger.With("correlation_id", correlationID)
		}
		if a := GetActor(c); a != nil {
			requestLogger = requestLogger.With("user_id", a.UserID)
		}

		statusCode := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case statusCode >= http.StatusInternalServerError:
			level = slog.LevelError
		case statusCode >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		requestLogger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", statusCode,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}
