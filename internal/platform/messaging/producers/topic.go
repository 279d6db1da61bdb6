package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/config"
)

const partitionReadAttempts = 5

// topicAdmin is the part of *kafka.Conn needed to provision a topic
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// topicProvisioner creates a producer's topic on startup. Brokers often refuse metadata
// requests for a few seconds after boot, so reads are retried before creating.
type topicProvisioner struct {
	admin             topicAdmin
	numPartitions     int
	replicationFactor int
	retryWait         time.Duration
	logger            *slog.Logger
}

// ensureTopic dials the configured broker and creates topic when it is missing
func ensureTopic(cfg *config.KafkaConfig, topic string, logger *slog.Logger) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka for topic %s: %w", topic, err)
	}
	defer conn.Close()

	p := &topicProvisioner{
		admin:             conn,
		numPartitions:     cfg.NumPartitions,
		replicationFactor: cfg.ReplicationFactor,
		retryWait:         2 * time.Second,
		logger:            logger,
	}
	return p.ensure(topic)
}

func (p *topicProvisioner) ensure(topic string) error {
	var lastErr error
	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		partitions, err := p.admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			p.logger.Debug("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		if err == nil {
			break
		}
		lastErr = err
		p.logger.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		if attempt < partitionReadAttempts {
			time.Sleep(p.retryWait)
		}
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(p.numPartitions, 1),
		ReplicationFactor: max(p.replicationFactor, 1),
	}
	if err := p.admin.CreateTopics(topicConfig); err != nil {
		if lastErr != nil {
			return fmt.Errorf("failed to create kafka topic %s after read error %v: %w", topic, lastErr, err)
		}
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	p.logger.Info("Created Kafka topic", "topic", topic,
		"partitions", topicConfig.NumPartitions, "replication_factor", topicConfig.ReplicationFactor)
	return nil
}

// newWriter builds a synchronous writer; WriteMessages returns only after the broker acks.
// Keys are hashed so every message for one wallet lands on the same partition.
func newWriter(cfg *config.KafkaConfig, topic string, acks kafka.RequiredAcks, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: acks,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages", "topic", topic, "error", err, "count", len(messages))
			}
		},
	}
}
