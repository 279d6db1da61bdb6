// Package history holds the per-user read model of finished transactions.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// Direction tells whether money left or entered the user's wallet
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Entry is one transaction as seen by one of its parties
type Entry struct {
	TransactionID      uuid.UUID          `json:"transaction_id"`
	Reference          string             `json:"reference"`
	UserID             int64              `json:"user_id"`
	Direction          Direction          `json:"direction"`
	CounterpartyID     *int64             `json:"counterparty_id,omitempty"`
	CounterpartyWallet string             `json:"counterparty_wallet_number,omitempty"`
	Type               transaction.Type   `json:"type"`
	Status             transaction.Status `json:"status"`
	Amount             decimal.Decimal    `json:"amount"`
	Fee                decimal.Decimal    `json:"fee"`
	Description        string             `json:"description,omitempty"`
	FailureReason      string             `json:"failure_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
}

// FromEvent splits an event into one entry per involved user
func FromEvent(event *transaction.Event) []*Entry {
	var entries []*Entry

	base := func(userID int64, dir Direction) *Entry {
		return &Entry{
			TransactionID: event.TransactionID,
			Reference:     event.Reference,
			UserID:        userID,
			Direction:     dir,
			Type:          event.Type,
			Status:        event.Status,
			Amount:        event.Amount,
			Description:   event.Description,
			FailureReason: event.FailureReason,
			CreatedAt:     event.CreatedAt,
			ProcessedAt:   event.ProcessedAt,
		}
	}

	if event.SenderID != nil {
		e := base(*event.SenderID, DirectionDebit)
		e.Fee = event.Fee
		e.CounterpartyID = event.ReceiverID
		e.CounterpartyWallet = event.ReceiverWallet
		entries = append(entries, e)
	}
	if event.ReceiverID != nil {
		e := base(*event.ReceiverID, DirectionCredit)
		e.Fee = decimal.Zero
		e.CounterpartyID = event.SenderID
		e.CounterpartyWallet = event.SenderWallet
		entries = append(entries, e)
	}

	return entries
}
