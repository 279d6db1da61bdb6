package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader lets clients retry a mutating request safely
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks a response served from the idempotency store
	IdempotentReplayHeader = "Idempotent-Replayed"

	idempotencyPrefix = "idempotency:v1:"
	inProgressMarker  = "__in_progress__"
	storeTimeout      = 2 * time.Second
	maxKeyLength      = 255
)

type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
}

// capturingWriter tees the response body so it can be stored after the handler runs
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency stores the first response per (user, Idempotency-Key) for ttl and replays it.
// Requests without the header pass through. A duplicate that arrives while the first is
// still running gets 409. Server errors are not stored so the client can retry.
// Must run after Actor.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			abort(c, http.StatusBadRequest, "BAD_REQUEST", IdempotencyKeyHeader+" is too long")
			return
		}

		cacheKey := idempotencyPrefix + key
		if a := GetActor(c); a != nil {
			cacheKey = idempotencyPrefix + strconv.FormatInt(a.UserID, 10) + ":" + key
		}
		logger := logger.With("idempotency_key", key, "correlation_id", GetCorrelationID(c))

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		cancel()
		if err != nil {
			logger.Error("Idempotency reservation failed", "error", err)
			abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "idempotency store failure")
			return
		}

		if !reserved {
			replay(c, cache, cacheKey, logger)
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), storeTimeout)
		defer persistCancel()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := cache.Del(persistCtx, cacheKey).Err(); err != nil {
				logger.Error("Failed to release idempotency key", "error", err)
			}
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      status,
			Body:        writer.body.String(),
			ContentType: writer.Header().Get("Content-Type"),
		})
		if err == nil {
			err = cache.Set(persistCtx, cacheKey, payload, ttl).Err()
		}
		if err != nil {
			logger.Error("Failed to persist idempotent response", "error", err)
			cache.Del(persistCtx, cacheKey)
		}
	}
}

func replay(c *gin.Context, cache *redis.Client, cacheKey string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	cached, err := cache.Get(ctx, cacheKey).Result()
	switch {
	case errors.Is(err, redis.Nil), err == nil && cached == inProgressMarker:
		abort(c, http.StatusConflict, "CONFLICT", "a request with this Idempotency-Key is still being processed")
		return
	case err != nil:
		logger.Error("Idempotency lookup failed", "error", err)
		abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "idempotency store failure")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("Failed to decode stored idempotent response", "error", err)
		abort(c, http.StatusConflict, "CONFLICT", "duplicate request")
		return
	}

	logger.Info("Replaying stored response", "status", stored.Status)
	c.Header(IdempotentReplayHeader, "true")
	c.Data(stored.Status, stored.ContentType, []byte(stored.Body))
	c.Abort()
}
