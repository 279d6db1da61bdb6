package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// TransferRequestPublisher hands asynchronous transfer requests to the processor
type TransferRequestPublisher interface {
	PublishTransferRequest(ctx context.Context, req *shared.TransferRequest) error
	Close() error
}

// EventPublisher announces finished transactions to downstream consumers
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *transaction.Event) error
	Close() error
}

// DeadLetterPublisher parks messages that can never be processed
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, letter DeadLetter) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
