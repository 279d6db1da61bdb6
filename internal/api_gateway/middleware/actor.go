package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spwallet-ledger/internal/domain/actor"
)

const (
	// UserIDHeader carries the authenticated user id set by the upstream auth layer
	UserIDHeader = "X-User-ID"
	// ActorKey is the key used to store the resolved actor in the context
	ActorKey = "actor"
)

// Actor resolves the calling user on every request. The directory is not cached,
// so a suspension applies to the very next request.
func Actor(directory actor.Directory, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || userID <= 0 {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid "+UserIDHeader+" header")
			return
		}

		a, err := directory.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, actor.ErrActorNotFound{}) {
				abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "unknown user")
				return
			}
			logger.Error("Failed to resolve actor", "user_id", userID, "error", err, "correlation_id", GetCorrelationID(c))
			abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
			return
		}

		c.Set(ActorKey, a)
		c.Next()
	}
}

// GetActor returns the actor stored by the Actor middleware, or nil
func GetActor(c *gin.Context) *actor.Actor {
	if v, exists := c.Get(ActorKey); exists {
		if a, ok := v.(*actor.Actor); ok {
			return a
		}
	}
	return nil
}

// abort writes the error envelope used by handlers and stops the chain
func abort(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
