package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/config"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error
	Close() error
}

// KafkaReader wraps kafka.Reader methods for testing
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const defaultHandlerAttempts = 5

// KafkaConsumer implements Consumer using Kafka. A failing message is retried in
// place, with doubling backoff, up to handlerAttempts times before it is skipped:
// committing a later offset would skip it anyway.
type KafkaConsumer struct {
	reader          KafkaReader
	logger          *slog.Logger
	retryBackoff    time.Duration
	handlerAttempts int
	done            chan struct{}
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	return &KafkaConsumer{
		logger:          logger,
		retryBackoff:    time.Second,
		handlerAttempts: defaultHandlerAttempts,
		done:            make(chan struct{}),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.TransferTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// Subscribe subscribes to the specified topic and processes messages with the handler
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", topic,
		"group_id", groupID,
	)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Context canceled, stopping consumer",
					"topic", topic,
					"group_id", groupID,
				)
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					c.logger.Error("Failed to fetch message from Kafka",
						"topic", topic,
						"group_id", groupID,
						"error", err,
					)
					// If the context was canceled, return
					if ctx.Err() != nil {
						return
					}
					// Otherwise, wait a bit and try again
					time.Sleep(c.retryBackoff)
					continue
				}

				c.logger.Debug("Received message from Kafka",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"key", string(msg.Key),
				)

				if !c.handle(ctx, msg, handler) {
					if ctx.Err() != nil {
						return
					}
					c.logger.Error("Giving up on message after repeated failures",
						"topic", msg.Topic,
						"partition", msg.Partition,
						"offset", msg.Offset,
						"key", string(msg.Key),
						"attempts", c.handlerAttempts,
					)
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.Error("Failed to commit message after successful processing",
						"topic", msg.Topic,
						"partition", msg.Partition,
						"offset", msg.Offset,
						"key", string(msg.Key),
						"error", err,
					)
				} else {
					c.logger.Debug("Message committed successfully",
						"topic", msg.Topic,
						"offset", msg.Offset,
						"key", string(msg.Key),
					)
				}
			}
		}
	}()

	return nil
}

// handle runs handler until it succeeds, attempts run out or ctx ends
func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	attempts := c.handlerAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := c.retryBackoff

	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		c.logger.Warn("Failed to process message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"attempt", attempt,
			"error", err,
		)
		if attempt >= attempts {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// Done is closed once the Subscribe loop has returned
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
