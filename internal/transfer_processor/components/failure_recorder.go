package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

type FailureRecorderImpl struct {
	uow    transfer.UnitOfWork
	ledger service.LedgerRecorder
	logger *slog.Logger
}

func NewFailureRecorder(uow transfer.UnitOfWork, ledger service.LedgerRecorder, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		uow:    uow,
		ledger: ledger,
		logger: logger,
	}
}

// RecordFailure writes the attempt as processing -> failed in a unit of work of its own,
// after the attempt's own unit has been rolled back
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, draft transaction.Draft, origin transaction.Origin, cause string, now time.Time) (*transaction.Transaction, error) {
	// The attempt may have failed on a cancelled context; the audit row is still owed
	ctx = context.WithoutCancel(ctx)

	sess, err := r.uow.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin unit of work for failure record", "cause", cause, "error", err)
		return nil, fmt.Errorf("failed to begin failure record: %w", err)
	}
	defer sess.Rollback(ctx)

	// A failed attempt never owns the idempotency key, so the caller may retry with it
	draft.IdempotencyKey = ""

	txn, err := r.ledger.Record(ctx, sess, draft, now)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.Fail(ctx, sess, txn, origin, cause, now); err != nil {
		return nil, err
	}
	if err := sess.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit failure record", "reference", txn.Reference, "error", err)
		return nil, fmt.Errorf("failed to commit failure record: %w", err)
	}

	r.logger.Info("Recorded failed transaction", "reference", txn.Reference, "cause", cause)
	return txn, nil
}
