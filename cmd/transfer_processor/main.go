package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/data/mongo"
	"github.com/spwallet-ledger/internal/data/postgres"
	"github.com/spwallet-ledger/internal/logger"
	"github.com/spwallet-ledger/internal/platform/messaging/consumers"
	"github.com/spwallet-ledger/internal/platform/messaging/producers"
	"github.com/spwallet-ledger/internal/platform/persistence"
	"github.com/spwallet-ledger/internal/transfer_processor/components"
	"github.com/spwallet-ledger/internal/transfer_processor/consumer"
	"github.com/spwallet-ledger/internal/transfer_processor/outbox_poller"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transfer_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Transfer Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	directory := postgres.NewActorDirectory(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	if err := historyRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create history indexes", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil when KAFKA_DLQ_TOPIC is empty; PublishToDLQ reports ErrDLQDisabled then.

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize the transfer core behind the worker pool
	transferService, _ := components.CreateTransferService(components.Stores{
		UnitOfWork:   postgres.NewUnitOfWork(log, postgresDB, walletRepo, transactionRepo, outboxRepo, cfg.Transfer.LockTimeout),
		Wallets:      walletRepo,
		Transactions: transactionRepo,
		Directory:    directory,
	}, cfg, log)
	executor := components.CreateTransferExecutor(transferService, cfg, log)

	// Initialize transfer request handler
	transferRequestHandler := consumer.NewTransferRequestHandler(
		log,
		executor,
		directory,
		dlqProducer,
	)

	// Initialize outbox poller
	dispatcher := outbox_poller.NewEventDispatcher(
		outboxRepo,
		historyRepo,
		eventProducer,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		dispatcher,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.TransferTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.TransferTopic, cfg.Kafka.ConsumerGroup, transferRequestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
			return
		}
		<-kafkaConsumer.Done()
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// The consumer has stopped, so no new transfers reach the pool
	if wpService, ok := executor.(*service.WorkerPoolTransferService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Transfer Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Transfer Processor shutdown completed with errors")
	} else {
		log.Info("Transfer Processor shutdown completed successfully")
	}
}
