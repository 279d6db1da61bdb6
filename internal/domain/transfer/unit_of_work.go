package transfer

import (
	"context"

	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// UnitOfWork opens isolated, all-or-nothing sessions over the wallet store and ledger
type UnitOfWork interface {
	Begin(ctx context.Context) (Session, error)
}

// Session exposes repositories bound to one open unit of work.
// Rollback after a successful Commit is a no-op, so callers may always defer it.
type Session interface {
	Wallets() wallet.Repository
	Transactions() transaction.Repository
	Outbox() outbox.Repository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
