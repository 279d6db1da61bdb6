package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// TransferService is the transfer core: synchronous transfers, receiver lookup and top-ups
type TransferService interface {
	ExecuteTransfer(ctx context.Context, cmd transfer.Command) (*transfer.Result, error)
	ValidateReceiver(ctx context.Context, identifier string, requestingUserID int64) (*transfer.Party, error)
	TopUp(ctx context.Context, cmd transfer.TopUpCommand) (*transfer.Result, error)
}

// TransferExecutor runs a single transfer; the worker pool wraps one
type TransferExecutor interface {
	ExecuteTransfer(ctx context.Context, cmd transfer.Command) (*transfer.Result, error)
}

// WalletService provisions and reads wallets
type WalletService interface {
	GetOrCreate(ctx context.Context, userID int64, now time.Time) (*wallet.Wallet, error)
}

// Receiver is a resolved transfer target. Wallet is nil when the user has none.
type Receiver struct {
	UserID int64
	Name   string
	Wallet *wallet.Wallet
	Via    shared.ReceiverVia
}

// AmountLimit selects the ceiling an amount is validated against
type AmountLimit int

const (
	LimitTransfer AmountLimit = iota
	LimitTopUp
)

// StatusGate answers whether a user may currently send or receive money
type StatusGate interface {
	// Eligible reads the user fresh and applies active + not-suspended at now
	Eligible(ctx context.Context, userID int64, now time.Time) (*actor.Actor, bool, error)
}

// ReceiverResolver turns a wallet number, email or QR payload into a receiver
type ReceiverResolver interface {
	Resolve(ctx context.Context, identifier string) (*Receiver, error)
}

// AmountValidator parses user-entered amounts and applies the configured bounds
type AmountValidator interface {
	Validate(raw string, limit AmountLimit) (decimal.Decimal, error)
}

// FundsManager applies the balance primitives inside a session
type FundsManager interface {
	// LockWallets row-locks the wallets and returns fresh copies keyed by id
	LockWallets(ctx context.Context, sess transfer.Session, ids ...uuid.UUID) (map[uuid.UUID]*wallet.Wallet, error)
	Reserve(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error
	Release(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error
	Debit(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error
	Credit(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error
}

// LedgerRecorder owns every transaction write: creation, status transitions and their
// audit rows, and the outbox message of a terminal transition
type LedgerRecorder interface {
	Record(ctx context.Context, sess transfer.Session, draft transaction.Draft, now time.Time) (*transaction.Transaction, error)
	Complete(ctx context.Context, sess transfer.Session, txn *transaction.Transaction, origin transaction.Origin, now time.Time) error
	Fail(ctx context.Context, sess transfer.Session, txn *transaction.Transaction, origin transaction.Origin, cause string, now time.Time) error
	FindByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error)
}

// FailureRecorder persists a failed attempt in its own unit of work
type FailureRecorder interface {
	RecordFailure(ctx context.Context, draft transaction.Draft, origin transaction.Origin, cause string, now time.Time) (*transaction.Transaction, error)
}
