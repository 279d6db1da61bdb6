package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/shared"
)

// HeaderCorrelationID carries the gateway correlation id across Kafka hops
const HeaderCorrelationID = "correlation-id"

type TransferRequestProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewTransferRequestProducer ensures the request topic exists and opens a synchronous writer,
// so a request is acknowledged by the broker before the gateway answers 202
func NewTransferRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TransferRequestProducer, error) {
	if cfg.TransferTopic == "" {
		return nil, fmt.Errorf("kafka transfer topic is not configured")
	}

	if err := ensureTopic(cfg, cfg.TransferTopic, logger); err != nil {
		return nil, err
	}

	return &TransferRequestProducer{
		logger: logger,
		writer: newWriter(cfg, cfg.TransferTopic, kafka.RequireOne, logger),
		topic:  cfg.TransferTopic,
	}, nil
}

// PublishTransferRequest keys by sender so one sender's requests stay ordered on a partition
func (p *TransferRequestProducer) PublishTransferRequest(ctx context.Context, req *shared.TransferRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	key := strconv.FormatInt(req.SenderID, 10)
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(req.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish transfer request",
			"topic", p.topic,
			"key", key,
			"request_id", req.RequestID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to publish transfer request to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published transfer request",
		"topic", p.topic,
		"key", key,
		"request_id", req.RequestID.String(),
	)
	return nil
}

func (p *TransferRequestProducer) Close() error {
	p.logger.Info("Closing transfer request producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
