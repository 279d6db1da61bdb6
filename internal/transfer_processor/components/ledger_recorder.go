package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/identifier"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

type LedgerRecorderImpl struct {
	transactions transaction.Repository // Autocommit reads outside a session
	generator    *identifier.Generator
	logger       *slog.Logger
}

func NewLedgerRecorder(transactions transaction.Repository, generator *identifier.Generator, logger *slog.Logger) service.LedgerRecorder {
	return &LedgerRecorderImpl{
		transactions: transactions,
		generator:    generator,
		logger:       logger,
	}
}

// Record creates the transaction in processing status under a fresh reference
func (r *LedgerRecorderImpl) Record(ctx context.Context, sess transfer.Session, draft transaction.Draft, now time.Time) (*transaction.Transaction, error) {
	repo := sess.Transactions()

	reference, err := r.generator.UniqueReference(ctx, now, repo.ExistsByReference)
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction reference: %w", err)
	}
	draft.Reference = reference

	txn, err := transaction.New(draft, transaction.StatusProcessing, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := repo.Create(ctx, txn); err != nil {
		if !errors.Is(err, transaction.ErrDuplicateTransaction{}) {
			r.logger.Error("Failed to record transaction", "reference", reference, "error", err)
		}
		return nil, err
	}

	r.logger.Debug("Transaction recorded", "reference", reference, "type", txn.Type, "amount", txn.Amount.String())
	return txn, nil
}

// Complete moves txn from processing to completed
func (r *LedgerRecorderImpl) Complete(ctx context.Context, sess transfer.Session, txn *transaction.Transaction, origin transaction.Origin, now time.Time) error {
	return r.transition(ctx, sess, txn, transaction.StatusCompleted, origin, "", "Transfer completed", now)
}

// Fail moves txn from processing to failed, keeping cause in the audit note
func (r *LedgerRecorderImpl) Fail(ctx context.Context, sess transfer.Session, txn *transaction.Transaction, origin transaction.Origin, cause string, now time.Time) error {
	return r.transition(ctx, sess, txn, transaction.StatusFailed, origin, cause, "Transfer failed: "+cause, now)
}

func (r *LedgerRecorderImpl) FindByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	txn, err := r.transactions.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return txn, nil
}

// transition is the only path that changes a recorded status: the guarded update,
// its audit row and the outbox message are written to the same session
func (r *LedgerRecorderImpl) transition(
	ctx context.Context,
	sess transfer.Session,
	txn *transaction.Transaction,
	to transaction.Status,
	origin transaction.Origin,
	reason string,
	notes string,
	now time.Time,
) error {
	from := txn.Status
	if err := txn.Apply(to, reason, now); err != nil {
		return err
	}

	repo := sess.Transactions()
	if err := repo.UpdateStatus(ctx, txn, from); err != nil {
		return fmt.Errorf("failed to update transaction %s to %s: %w", txn.Reference, to, err)
	}
	if err := repo.AppendLog(ctx, transaction.NewLog(txn.ID, from, to, origin, notes, now)); err != nil {
		return fmt.Errorf("failed to append log for transaction %s: %w", txn.Reference, err)
	}

	message, err := outbox.NewMessage(txn, now)
	if err != nil {
		return fmt.Errorf("failed to build outbox message for transaction %s: %w", txn.Reference, err)
	}
	if err := sess.Outbox().Create(ctx, message); err != nil {
		return fmt.Errorf("failed to create outbox message for transaction %s: %w", txn.Reference, err)
	}

	r.logger.Debug("Transaction transitioned", "reference", txn.Reference, "from", from, "to", to)
	return nil
}
