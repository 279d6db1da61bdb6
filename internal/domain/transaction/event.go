package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata keys written by the transfer core
const (
	MetaSenderWallet   = "sender_wallet_number"
	MetaReceiverWallet = "receiver_wallet_number"
	MetaDescription    = "description"
	MetaReceiverVia    = "receiver_identifier_type"
)

// Event is the published form of a transaction that reached a terminal status
type Event struct {
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Reference      string          `json:"reference"`
	Type           Type            `json:"type"`
	Status         Status          `json:"status"`
	SenderID       *int64          `json:"sender_id,omitempty"`
	ReceiverID     *int64          `json:"receiver_id,omitempty"`
	SenderWallet   string          `json:"sender_wallet_number,omitempty"`
	ReceiverWallet string          `json:"receiver_wallet_number,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Description    string          `json:"description,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// NewEvent snapshots txn for publication
func NewEvent(txn *Transaction) *Event {
	return &Event{
		TransactionID:  txn.ID,
		Reference:      txn.Reference,
		Type:           txn.Type,
		Status:         txn.Status,
		SenderID:       txn.SenderID,
		ReceiverID:     txn.ReceiverID,
		SenderWallet:   txn.Metadata[MetaSenderWallet],
		ReceiverWallet: txn.Metadata[MetaReceiverWallet],
		Amount:         txn.Amount,
		Fee:            txn.Fee,
		TotalAmount:    txn.TotalAmount,
		Description:    txn.Description,
		FailureReason:  txn.FailureReason,
		CreatedAt:      txn.CreatedAt,
		ProcessedAt:    txn.ProcessedAt,
	}
}
