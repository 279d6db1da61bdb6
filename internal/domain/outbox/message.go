package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// Message stores a transaction event for reliable publishing after commit
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	Reference     string              `json:"reference"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps the event of a finished transaction
func NewMessage(txn *transaction.Transaction, now time.Time) (*Message, error) {
	payload, err := json.Marshal(transaction.NewEvent(txn))
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}

// Event decodes the payload
func (m *Message) Event() (*transaction.Event, error) {
	var event transaction.Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
