// Package config provides configuration structures and validation for the wallet services.
// Both binaries share one Config; each reads its own .env file and environment overrides.
package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration with settings for all components.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Transfer    TransferConfig
	Identifier  IdentifierConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	TransferTopic     string // Asynchronous transfer requests
	EventsTopic       string // Finished transaction events
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for undecodable transfer requests
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
	ApplicationName string // reported in pg_stat_activity
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the idempotency cache configuration
type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// TransferConfig holds the amount bounds and locking limits applied by the transfer core.
// Amounts are in currency units with two fractional digits.
type TransferConfig struct {
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	TopUpMaxAmount decimal.Decimal
	LockTimeout    time.Duration // Upper bound on waiting for a wallet row lock
}

// IdentifierConfig controls wallet number and reference generation
type IdentifierConfig struct {
	WalletPrefix string
	MaxAttempts  int
}

var walletPrefixPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// validate performs validation of all configuration values,
// collecting every problem instead of stopping at the first one
func (c *Config) validate() error {
	var validationErrors []string

	// Server
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.TransferTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_TRANSFER_TOPIC is required")
	}
	if c.Kafka.EventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_EVENTS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// PostgreSQL
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// MongoDB
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Redis
	if c.Redis.URL == "" {
		validationErrors = append(validationErrors, "REDIS_URL is required")
	}
	if c.Redis.IdempotencyTTL <= 0 {
		validationErrors = append(validationErrors, "IDEMPOTENCY_TTL must be greater than 0")
	}

	// Outbox
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Transfer limits
	if !c.Transfer.MinAmount.IsPositive() {
		validationErrors = append(validationErrors, "TRANSFER_MIN_AMOUNT must be greater than 0")
	}
	if c.Transfer.MaxAmount.LessThan(c.Transfer.MinAmount) {
		validationErrors = append(validationErrors, "TRANSFER_MAX_AMOUNT must not be less than TRANSFER_MIN_AMOUNT")
	}
	if c.Transfer.TopUpMaxAmount.LessThan(c.Transfer.MaxAmount) {
		validationErrors = append(validationErrors, "TOPUP_MAX_AMOUNT must not be less than TRANSFER_MAX_AMOUNT")
	}
	if c.Transfer.LockTimeout <= 0 {
		validationErrors = append(validationErrors, "TRANSFER_LOCK_TIMEOUT must be greater than 0")
	}

	if !walletPrefixPattern.MatchString(c.Identifier.WalletPrefix) {
		validationErrors = append(validationErrors, "WALLET_NUMBER_PREFIX must be two upper-case letters")
	}
	if c.Identifier.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "IDENTIFIER_MAX_ATTEMPTS must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
