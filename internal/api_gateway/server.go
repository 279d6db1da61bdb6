package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spwallet-ledger/internal/api_gateway/handler"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/actor"
	core "github.com/spwallet-ledger/internal/transfer_processor/service"
)

// Dependencies are the collaborators the HTTP layer is built from
type Dependencies struct {
	Directory          actor.Directory
	Transfers          core.TransferService
	TransactionService service.TransactionService
	WalletService      service.WalletService
	HistoryService     service.HistoryService
	Cache              *redis.Client // Optional; nil disables idempotent replay
	HealthChecks       map[string]HealthCheck
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, deps Dependencies) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter, deps.Directory, deps.Cache, cfg.Redis.IdempotencyTTL, deps.HealthChecks, handlers{
		transfers:    handler.NewTransferHandler(log, deps.Transfers, deps.TransactionService),
		wallets:      handler.NewWalletHandler(log, deps.WalletService, deps.HistoryService),
		transactions: handler.NewTransactionHandler(log, deps.TransactionService),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, bounded by the server's write timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
