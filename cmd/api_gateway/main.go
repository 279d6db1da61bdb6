package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spwallet-ledger/internal/api_gateway"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/data/mongo"
	"github.com/spwallet-ledger/internal/data/postgres"
	"github.com/spwallet-ledger/internal/logger"
	"github.com/spwallet-ledger/internal/platform/cache"
	"github.com/spwallet-ledger/internal/platform/messaging/producers"
	"github.com/spwallet-ledger/internal/platform/persistence"
	"github.com/spwallet-ledger/internal/transfer_processor/components"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := cache.NewRedisClient(appCtx, cfg.Redis.URL)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for asynchronous transfer requests
	kafkaProducer, err := producers.NewTransferRequestProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize transfer request Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	directory := postgres.NewActorDirectory(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// Synchronous transfers run the core in-process
	transferService, walletProvisioner := components.CreateTransferService(components.Stores{
		UnitOfWork:   postgres.NewUnitOfWork(log, postgresDB, walletRepo, transactionRepo, outboxRepo, cfg.Transfer.LockTimeout),
		Wallets:      walletRepo,
		Transactions: transactionRepo,
		Directory:    directory,
	}, cfg, log)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Dependencies{
		Directory:          directory,
		Transfers:          transferService,
		TransactionService: service.NewTransactionService(log, transactionRepo, kafkaProducer),
		WalletService:      service.NewWalletService(walletProvisioner),
		HistoryService:     service.NewHistoryService(log, historyRepo),
		Cache:              redisClient,
		HealthChecks: map[string]api_gateway.HealthCheck{
			"postgres": postgresDB.Ping,
			"mongodb":  mongoDB.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence: stop taking requests before closing what they use
	log.Info("Starting graceful shutdown...")

	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
