package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransferRequest = errors.New("invalid transfer request")

// TransferRequest is the Kafka message for an asynchronous transfer
type TransferRequest struct {
	RequestID          uuid.UUID `json:"request_id"`
	SenderID           int64     `json:"sender_id"`
	ReceiverIdentifier string    `json:"receiver_identifier"`
	Amount             string    `json:"amount"` // Decimal string, two fractional digits
	Description        string    `json:"description,omitempty"`
	IdempotencyKey     string    `json:"idempotency_key,omitempty"`
	CorrelationID      string    `json:"correlation_id"`
	ClientIP           string    `json:"client_ip,omitempty"`
	UserAgent          string    `json:"user_agent,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Validate checks the fields a consumer needs before handing the request to the core
func (r *TransferRequest) Validate() error {
	if r.RequestID == uuid.Nil || r.SenderID <= 0 || r.ReceiverIdentifier == "" || r.Amount == "" {
		return ErrInvalidTransferRequest
	}
	return nil
}
