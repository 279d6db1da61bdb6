package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// HeaderEventStatus lets subscribers filter events without decoding the payload
const HeaderEventStatus = "transaction-status"

type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewEventProducer opens a synchronous writer on the events topic
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	if err := ensureTopic(cfg, cfg.EventsTopic, logger); err != nil {
		return nil, err
	}

	return &EventProducer{
		logger: logger,
		writer: newWriter(cfg, cfg.EventsTopic, kafka.RequireAll, logger),
		topic:  cfg.EventsTopic,
	}, nil
}

// PublishEvent keys by reference so every event of one transaction lands on one partition
func (p *EventProducer) PublishEvent(ctx context.Context, event *transaction.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventStatus, Value: []byte(event.Status)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish transaction event",
			"topic", p.topic,
			"reference", event.Reference,
			"error", err,
		)
		return fmt.Errorf("failed to publish transaction event to %s: %w", p.topic, err)
	}
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing transaction event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
