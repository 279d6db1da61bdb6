package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
)

// TopUp credits a user's wallet on behalf of an administrator. The wallet is created
// on demand. Once the top-up is recorded, a failure leaves a failed transaction.
func (s *TransferServiceImpl) TopUp(ctx context.Context, cmd transfer.TopUpCommand) (*transfer.Result, error) {
	logger := s.logger.With("user_id", cmd.UserID)
	now := cmd.Now
	if now.IsZero() {
		now = s.now().UTC()
	}

	if !cmd.Capabilities.Has(actor.CapTopUp) {
		logger.Warn("Top-up refused, actor lacks top-up capability")
		return nil, transfer.ErrForbidden
	}

	var adminID int64
	if cmd.Origin.ActorID != nil {
		adminID = *cmd.Origin.ActorID
	}
	key := transaction.ScopedKey(adminID, cmd.IdempotencyKey)
	if replay, err := s.replay(ctx, key, func(t *transaction.Transaction) bool {
		return t.Type == transaction.TypeTopUp && t.ReceiverID != nil && *t.ReceiverID == cmd.UserID
	}); replay != nil || err != nil {
		return replay, err
	}

	user, ok, err := s.gate.Eligible(ctx, cmd.UserID, now)
	if err != nil {
		if errors.Is(err, actor.ErrActorNotFound{}) {
			return nil, transfer.ErrReceiverNotFound.Wrap(err)
		}
		return nil, asTransferError(err, logger, "Failed to check top-up eligibility")
	}
	if !ok {
		return nil, transfer.ErrReceiverIneligible
	}

	amount, err := s.amounts.Validate(cmd.Amount, LimitTopUp)
	if err != nil {
		return nil, err
	}

	w, err := s.walletSv.GetOrCreate(ctx, cmd.UserID, now)
	if err != nil {
		return nil, asTransferError(err, logger, "Failed to provision wallet for top-up")
	}

	userID := cmd.UserID
	draft := transaction.Draft{
		ReceiverID:     &userID,
		Type:           transaction.TypeTopUp,
		Amount:         amount,
		Fee:            decimal.Zero,
		Description:    cmd.Description,
		IdempotencyKey: key,
		Metadata: map[string]string{
			transaction.MetaReceiverWallet: w.WalletNumber,
			transaction.MetaDescription:    cmd.Description,
		},
	}

	sess, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, transfer.ErrTransferFailed.Wrap(err)
	}
	defer func() {
		if rbErr := sess.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error("Failed to roll back top-up", "error", rbErr)
		}
	}()

	if _, err := s.funds.LockWallets(ctx, sess, w.ID); err != nil {
		return nil, asTransferError(err, logger, "Failed to lock wallet for top-up")
	}

	txn, err := s.ledger.Record(ctx, sess, draft, now)
	if err != nil {
		if isKeyConflict(err) {
			return nil, transfer.NewError(transfer.KindTransferFailed, "idempotency key already used", err)
		}
		return nil, asTransferError(err, logger, "Failed to record top-up")
	}

	err = s.funds.Credit(ctx, sess, w.ID, amount)
	if err == nil {
		err = s.ledger.Complete(ctx, sess, txn, cmd.Origin, now)
	}
	if err == nil {
		if err = sess.Commit(ctx); err != nil {
			err = fmt.Errorf("failed to commit top-up: %w", err)
		}
	}
	if err != nil {
		if rbErr := sess.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error("Failed to roll back top-up", "error", rbErr)
		}
		if isKeyConflict(err) {
			return nil, transfer.NewError(transfer.KindTransferFailed, "idempotency key already used", err)
		}
		logger.Error("Top-up failed after it was recorded", "reference", txn.Reference, "error", err)
		if _, recErr := s.failures.RecordFailure(ctx, draft, cmd.Origin, err.Error(), now); recErr != nil {
			logger.Error("Failed to record failed top-up", "error", recErr)
		}
		return nil, transfer.ErrTransferFailed.Wrap(err)
	}

	logger.Info("Top-up completed", "reference", txn.Reference, "amount", amount.String())
	return &transfer.Result{
		Transaction: txn,
		Receiver:    &transfer.Party{UserID: user.UserID, Name: user.Name, WalletNumber: w.WalletNumber},
	}, nil
}
