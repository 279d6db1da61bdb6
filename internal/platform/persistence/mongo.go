package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spwallet-ledger/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB owns the client backing the transaction history read model
type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
	cfg      *config.MongoDBConfig
}

func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := &MongoDB{
		logger:   logger,
		client:   client,
		database: client.Database(cfg.Database),
		cfg:      cfg,
	}
	if err := db.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)
	return db, nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Ping checks the primary within the configured timeout
func (m *MongoDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := m.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}
