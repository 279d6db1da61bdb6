package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spwallet-ledger/internal/api_gateway/handler"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/domain/actor"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing store is reachable
type HealthCheck func(ctx context.Context) error

// handlers groups the HTTP handlers mounted by setupRouter
type handlers struct {
	transfers    *handler.TransferHandler
	wallets      *handler.WalletHandler
	transactions *handler.TransactionHandler
}

// setupRouter configures API routes and middleware for the application.
// Money-moving routes get the idempotency middleware when a cache is present.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	directory actor.Directory,
	cache *redis.Client,
	idempotencyTTL time.Duration,
	checks map[string]HealthCheck,
	h handlers,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	idempotent := func(c *gin.Context) { c.Next() }
	if cache != nil {
		idempotent = middleware.Idempotency(cache, idempotencyTTL, logger)
	}

	// API v1 endpoints, all acting on behalf of an authenticated user
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Actor(directory, logger))
	{
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", idempotent, h.transfers.Create)
			transfers.POST("/async", idempotent, h.transfers.CreateAsync)
		}

		v1.POST("/receivers/validate", h.transfers.ValidateReceiver)

		wallets := v1.Group("/wallets")
		{
			wallets.GET("/me", h.wallets.GetMine)
			wallets.GET("/me/history", h.wallets.History)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", h.transactions.List)
			transactions.GET("/:reference", h.transactions.GetByReference)
		}

		v1.POST("/admin/top-ups", idempotent, h.transfers.TopUp)
	}

	// Health check endpoint for monitoring; 503 when any backing store is unreachable
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Health check failed", "dependency", name, "error", err)
				results[name] = "down"
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}
		c.JSON(code, gin.H{"status": status, "checks": results, "timestamp": time.Now().UTC()})
	})
}
