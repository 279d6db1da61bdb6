package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/platform/persistence"
)

// TxBeginner is satisfied by *pgxpool.Pool
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UnitOfWork opens one pgx transaction per session. Each session bounds row-lock
// waits with SET LOCAL lock_timeout.
type UnitOfWork struct {
	db           TxBeginner
	logger       *slog.Logger
	lockTimeout  time.Duration
	wallets      *WalletRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

// NewUnitOfWork wires the repositories that sessions bind to their transaction
func NewUnitOfWork(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	wallets *WalletRepository,
	transactions *TransactionRepository,
	outboxRepo *OutboxRepository,
	lockTimeout time.Duration,
) *UnitOfWork {
	return &UnitOfWork{
		db:           db.Pool(),
		logger:       logger,
		lockTimeout:  lockTimeout,
		wallets:      wallets,
		transactions: transactions,
		outbox:       outboxRepo,
	}
}

// Begin starts a transaction
func (u *UnitOfWork) Begin(ctx context.Context) (transfer.Session, error) {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		u.logger.Error("Failed to begin database transaction", "error", err)
		return nil, fmt.Errorf("failed to begin database transaction: %w", err)
	}

	if u.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			u.logger.Error("Failed to set lock timeout", "error", err)
			return nil, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	return &session{
		tx:           tx,
		logger:       u.logger,
		wallets:      u.wallets.WithTx(tx),
		transactions: u.transactions.WithTx(tx),
		outbox:       u.outbox.WithTx(tx),
	}, nil
}

type session struct {
	tx           pgx.Tx
	logger       *slog.Logger
	wallets      wallet.Repository
	transactions transaction.Repository
	outbox       outbox.Repository
	done         bool
}

func (s *session) Wallets() wallet.Repository           { return s.wallets }
func (s *session) Transactions() transaction.Repository { return s.transactions }
func (s *session) Outbox() outbox.Repository            { return s.outbox }

func (s *session) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		s.logger.Error("Failed to commit database transaction", "error", err)
		return fmt.Errorf("failed to commit database transaction: %w", err)
	}
	s.done = true
	return nil
}

func (s *session) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Error("Failed to rollback database transaction", "error", err)
		return fmt.Errorf("failed to rollback database transaction: %w", err)
	}
	return nil
}
