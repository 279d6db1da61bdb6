package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// CreateTransferRequest represents a request to move money to another user.
// receiver is an email, a wallet number or a base64 QR payload.
type CreateTransferRequest struct {
	Receiver    string      `json:"receiver" binding:"required,max=2048"`
	Amount      json.Number `json:"amount" binding:"required"`
	Description string      `json:"description" binding:"max=255"`
}

// ValidateReceiverRequest represents a receiver lookup before a transfer
type ValidateReceiverRequest struct {
	Receiver string `json:"receiver" binding:"required,max=2048"`
}

// TopUpRequest represents an administrative credit
type TopUpRequest struct {
	UserID      int64       `json:"user_id" binding:"required,gt=0"`
	Amount      json.Number `json:"amount" binding:"required"`
	Description string      `json:"description" binding:"max=255"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	Reference            string `json:"reference"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	Amount               string `json:"amount"`
	Fee                  string `json:"fee"`
	TotalAmount          string `json:"total_amount"`
	Description          string `json:"description,omitempty"`
	SenderID             *int64 `json:"sender_id,omitempty"`
	ReceiverID           *int64 `json:"receiver_id,omitempty"`
	SenderWalletNumber   string `json:"sender_wallet_number,omitempty"`
	ReceiverWalletNumber string `json:"receiver_wallet_number,omitempty"`
	FailureReason        string `json:"failure_reason,omitempty"`
	CreatedAt            string `json:"created_at"`
	ProcessedAt          string `json:"processed_at,omitempty"`
}

// TransferResponse is a finished transfer with both parties expanded
type TransferResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Sender      *transfer.Party     `json:"sender,omitempty"`
	Receiver    *transfer.Party     `json:"receiver,omitempty"`
}

// LogResponse represents one audit-trail row
type LogResponse struct {
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status"`
	ActorID        *int64 `json:"actor_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// TransactionDetailResponse is a transaction with its audit trail
type TransactionDetailResponse struct {
	TransactionResponse
	Logs []LogResponse `json:"logs"`
}

// WalletResponse represents the caller's wallet
type WalletResponse struct {
	WalletNumber     string `json:"wallet_number"`
	Balance          string `json:"balance"`
	LockedBalance    string `json:"locked_balance"`
	AvailableBalance string `json:"available_balance"`
	IsActive         bool   `json:"is_active"`
	CreatedAt        string `json:"created_at"`
}

// HistoryEntryResponse represents one history row
type HistoryEntryResponse struct {
	Reference          string `json:"reference"`
	Direction          string `json:"direction"`
	Type               string `json:"type"`
	Status             string `json:"status"`
	Amount             string `json:"amount"`
	Fee                string `json:"fee"`
	CounterpartyID     *int64 `json:"counterparty_id,omitempty"`
	CounterpartyWallet string `json:"counterparty_wallet_number,omitempty"`
	Description        string `json:"description,omitempty"`
	FailureReason      string `json:"failure_reason,omitempty"`
	CreatedAt          string `json:"created_at"`
	ProcessedAt        string `json:"processed_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1,max=100000"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// TransactionQuery represents the filters of the transaction listing
type TransactionQuery struct {
	PaginationParams
	Status string     `form:"status" binding:"omitempty,oneof=pending processing completed failed cancelled"`
	Type   string     `form:"type" binding:"omitempty,oneof=internal_transfer external_transfer_send external_transfer_receive qr_payment top_up withdrawal card_transaction refund"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// HistoryQuery represents the filters of the history listing
type HistoryQuery struct {
	PaginationParams
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed cancelled"`
	Type   string `form:"type" binding:"omitempty,oneof=internal_transfer external_transfer_send external_transfer_receive qr_payment top_up withdrawal card_transaction refund"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(wallet.Scale)
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// mapTransactionToResponse maps a transaction to a response DTO
func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		Reference:            txn.Reference,
		Type:                 string(txn.Type),
		Status:               string(txn.Status),
		Amount:               money(txn.Amount),
		Fee:                  money(txn.Fee),
		TotalAmount:          money(txn.TotalAmount),
		Description:          txn.Description,
		SenderID:             txn.SenderID,
		ReceiverID:           txn.ReceiverID,
		SenderWalletNumber:   txn.Metadata[transaction.MetaSenderWallet],
		ReceiverWalletNumber: txn.Metadata[transaction.MetaReceiverWallet],
		FailureReason:        txn.FailureReason,
		CreatedAt:            txn.CreatedAt.Format(time.RFC3339),
		ProcessedAt:          timestamp(txn.ProcessedAt),
	}
}

func mapResultToResponse(result *transfer.Result) TransferResponse {
	return TransferResponse{
		Transaction: mapTransactionToResponse(result.Transaction),
		Sender:      result.Sender,
		Receiver:    result.Receiver,
	}
}

func mapDetailToResponse(txn *transaction.Transaction, logs []*transaction.Log) TransactionDetailResponse {
	resp := TransactionDetailResponse{
		TransactionResponse: mapTransactionToResponse(txn),
		Logs:                make([]LogResponse, 0, len(logs)),
	}
	for _, l := range logs {
		lr := LogResponse{
			NewStatus: string(l.NewStatus),
			ActorID:   l.ActorID,
			Notes:     l.Notes,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		}
		if l.PreviousStatus != nil {
			lr.PreviousStatus = string(*l.PreviousStatus)
		}
		resp.Logs = append(resp.Logs, lr)
	}
	return resp
}

func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		WalletNumber:     w.WalletNumber,
		Balance:          money(w.Balance),
		LockedBalance:    money(w.LockedBalance),
		AvailableBalance: money(w.Available()),
		IsActive:         w.IsActive,
		CreatedAt:        w.CreatedAt.Format(time.RFC3339),
	}
}

func mapHistoryToResponse(e *history.Entry) HistoryEntryResponse {
	return HistoryEntryResponse{
		Reference:          e.Reference,
		Direction:          string(e.Direction),
		Type:               string(e.Type),
		Status:             string(e.Status),
		Amount:             money(e.Amount),
		Fee:                money(e.Fee),
		CounterpartyID:     e.CounterpartyID,
		CounterpartyWallet: e.CounterpartyWallet,
		Description:        e.Description,
		FailureReason:      e.FailureReason,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		ProcessedAt:        timestamp(e.ProcessedAt),
	}
}
