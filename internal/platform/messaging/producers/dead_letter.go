package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/config"
)

// ErrDLQDisabled is returned by a nil DLQProducer
var ErrDLQDisabled = errors.New("dlq producer not initialized")

// Dead-letter stages name the step at which a transfer request became unprocessable
const (
	StageDecode   = "decode"
	StageValidate = "validate"
)

const (
	headerDLQStage  = "dlq-stage"
	headerDLQReason = "dlq-reason"
)

// DeadLetter is a message the transfer processor can never apply. Value is kept
// verbatim so an operator can fix and replay it.
type DeadLetter struct {
	Key    []byte
	Value  []byte
	Stage  string
	Reason string
}

// deadLetterRecord is the JSON body written to the DLQ topic
type deadLetterRecord struct {
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Stage         string    `json:"stage"`
	Reason        string    `json:"reason"`
	FailedAt      time.Time `json:"failed_at"`
}

type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
	now      func() time.Time
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, unprocessable transfer requests will be dropped")
		return nil, nil
	}

	if err := ensureTopic(cfg, cfg.DLQTopic, logger); err != nil {
		return nil, fmt.Errorf("dlq producer: %w", err)
	}

	return &DLQProducer{
		logger:   logger,
		writer:   newWriter(cfg, cfg.DLQTopic, kafka.RequireAll, logger),
		dlqTopic: cfg.DLQTopic,
		now:      time.Now,
	}, nil
}

func (p *DLQProducer) PublishToDLQ(ctx context.Context, letter DeadLetter) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	body, err := json.Marshal(deadLetterRecord{
		OriginalKey:   string(letter.Key),
		OriginalValue: string(letter.Value),
		Stage:         letter.Stage,
		Reason:        letter.Reason,
		FailedAt:      now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	msg := kafka.Message{
		Key:   letter.Key,
		Value: body,
		Headers: []kafka.Header{
			{Key: headerDLQStage, Value: []byte(letter.Stage)},
			{Key: headerDLQReason, Value: []byte(letter.Reason)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish dead letter to %s: %w", p.dlqTopic, err)
	}

	p.logger.Info("Published dead letter",
		"topic", p.dlqTopic,
		"key", string(letter.Key),
		"stage", letter.Stage,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
