package service

import (
	"context"
	"time"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// WalletService exposes the caller's wallet for display
type WalletService interface {
	// GetMyWallet returns the user's wallet, creating an empty one on first access
	GetMyWallet(ctx context.Context, userID int64) (*wallet.Wallet, error)
}

// TransactionService defines the read and asynchronous-submit operations on transactions
type TransactionService interface {
	// SubmitTransfer publishes a transfer request for the processor.
	// Returns the request ID, the existing transaction (if the idempotency key was already used), and any error
	SubmitTransfer(ctx context.Context, request *shared.TransferRequest) (string, *transaction.Transaction, error)

	// GetByReference returns a transaction and its audit trail.
	// Returns ErrTransactionNotFound when it does not exist or the viewer may not see it
	GetByReference(ctx context.Context, viewer *actor.Actor, reference string) (*transaction.Transaction, []*transaction.Log, error)

	// ListTransactions returns the viewer's transactions (sender or receiver), newest first, with the total count
	ListTransactions(ctx context.Context, viewer *actor.Actor, query ListQuery) ([]*transaction.Transaction, int64, error)
}

// HistoryService serves the per-user read model
type HistoryService interface {
	GetHistory(ctx context.Context, userID int64, filter history.Filter, page, perPage int) ([]*history.Entry, int64, error)
}

// WalletProvisioner creates wallets lazily
type WalletProvisioner interface {
	GetOrCreate(ctx context.Context, userID int64, now time.Time) (*wallet.Wallet, error)
}

// ListQuery narrows a transaction listing
type ListQuery struct {
	Status  transaction.Status
	Type    transaction.Type
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}
