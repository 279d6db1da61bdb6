package outbox

import (
	"context"
	"strconv"

	"github.com/spwallet-ledger/internal/domain/shared"
)

// Repository manages transactional outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	// RecordFailure counts one failed publish and moves the message to
	// FAILED_TO_PUBLISH once attempts reach maxAttempts. It returns the new count
	// and the resulting status.
	RecordFailure(ctx context.Context, id int64, maxAttempts int) (int, shared.OutboxStatus, error)
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID int64
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}
