package transaction

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("transaction amount must be positive")
	ErrInvalidFee    = errors.New("transaction fee must not be negative")
)

// Transaction is one transfer attempt and its outcome
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	Reference         string            `json:"reference"`
	SenderID          *int64            `json:"sender_id,omitempty"`
	ReceiverID        *int64            `json:"receiver_id,omitempty"`
	Type              Type              `json:"type"`
	Amount            decimal.Decimal   `json:"amount"`
	Fee               decimal.Decimal   `json:"fee"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	Status            Status            `json:"status"`
	Description       string            `json:"description"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ExternalReference *string           `json:"external_reference,omitempty"`
	InvoiceID         *int64            `json:"invoice_id,omitempty"`
	IdempotencyKey    *string           `json:"idempotency_key,omitempty"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	ProcessedAt       *time.Time        `json:"processed_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Draft carries what is known about a transaction before it is recorded
type Draft struct {
	Reference      string
	SenderID       *int64
	ReceiverID     *int64
	Type           Type
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// ScopedKey namespaces a client idempotency key by the user who sent it, so two users
// picking the same key never collide. The gateway's replay store is keyed the same way.
func ScopedKey(actorID int64, key string) string {
	if key == "" {
		return ""
	}
	return strconv.FormatInt(actorID, 10) + ":" + key
}

// New builds a transaction in the given initial status. total_amount is always amount + fee.
func New(d Draft, status Status, now time.Time) (*Transaction, error) {
	if !d.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if d.Fee.IsNegative() {
		return nil, ErrInvalidFee
	}
	if status != StatusPending && status != StatusProcessing {
		return nil, fmt.Errorf("transactions start as pending or processing, got %q", status)
	}

	var key *string
	if d.IdempotencyKey != "" {
		k := d.IdempotencyKey
		key = &k
	}

	return &Transaction{
		ID:             uuid.New(),
		Reference:      d.Reference,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Type:           d.Type,
		Amount:         d.Amount,
		Fee:            d.Fee,
		TotalAmount:    d.Amount.Add(d.Fee),
		Status:         status,
		Description:    d.Description,
		Metadata:       d.Metadata,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Involves reports whether the user is the sender or receiver
func (t *Transaction) Involves(userID int64) bool {
	return (t.SenderID != nil && *t.SenderID == userID) ||
		(t.ReceiverID != nil && *t.ReceiverID == userID)
}

// Apply moves the transaction to status and stamps processed_at on terminal states
func (t *Transaction) Apply(to Status, reason string, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition{From: t.Status, To: to}
	}
	t.Status = to
	t.UpdatedAt = now
	if to.IsTerminal() {
		t.ProcessedAt = &now
	}
	if to == StatusFailed {
		t.FailureReason = reason
	}
	return nil
}
