// Package persistence bootstraps the PostgreSQL pool and the MongoDB client shared by
// the repositories.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spwallet-ledger/internal/config"
)

// Querier supports database operations for both pool and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Ensure interfaces are satisfied (compile-time check)
var _ Querier = (*pgxpool.Pool)(nil)
var _ Querier = (pgx.Tx)(nil)

type PostgresDB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresDB applies pending migrations, then opens and pings the pool
func NewPostgresDB(ctx context.Context, logger *slog.Logger, cfg *config.PostgresConfig) (*PostgresDB, error) {
	if err := RunMigrations(logger, cfg.URL, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	poolConfig, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL", "max_conns", cfg.MaxConns)

	return &PostgresDB{
		pool:   pool,
		logger: logger,
	}, nil
}

// newPoolConfig applies the pool sizing from cfg on top of the connection string. Settings
// already present in the URL win over ApplicationName.
func newPoolConfig(cfg *config.PostgresConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	params := poolConfig.ConnConfig.RuntimeParams
	if _, set := params["application_name"]; !set && cfg.ApplicationName != "" {
		params["application_name"] = cfg.ApplicationName
	}
	return poolConfig, nil
}

func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping is used by the readiness probe
func (db *PostgresDB) Ping(ctx context.Context) error {
	if db.pool == nil {
		return fmt.Errorf("postgres pool is not initialized")
	}
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() {
	db.pool.Close()
	db.logger.Info("Closed PostgreSQL connection")
}
