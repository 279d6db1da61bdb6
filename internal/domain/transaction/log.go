package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Log is an append-only audit row recording one status transition
type Log struct {
	ID             uuid.UUID `json:"id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	PreviousStatus *Status   `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	Notes          string    `json:"notes"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Origin identifies who caused a transition and from where
type Origin struct {
	ActorID   *int64
	IPAddress string
	UserAgent string
}

// NewLog builds the audit row for from -> to
func NewLog(transactionID uuid.UUID, from, to Status, origin Origin, notes string, now time.Time) *Log {
	prev := from
	return &Log{
		ID:             uuid.New(),
		TransactionID:  transactionID,
		PreviousStatus: &prev,
		NewStatus:      to,
		ActorID:        origin.ActorID,
		Notes:          notes,
		IPAddress:      origin.IPAddress,
		UserAgent:      origin.UserAgent,
		CreatedAt:      now,
	}
}
