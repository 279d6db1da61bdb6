package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

type TransferServiceImpl struct {
	uow      transfer.UnitOfWork
	wallets  wallet.Repository // Autocommit reads outside the unit of work
	gate     StatusGate
	resolver ReceiverResolver
	amounts  AmountValidator
	funds    FundsManager
	ledger   LedgerRecorder
	failures FailureRecorder
	walletSv WalletService
	logger   *slog.Logger
	now      func() time.Time
}

func NewTransferService(
	uow transfer.UnitOfWork,
	wallets wallet.Repository,
	gate StatusGate,
	resolver ReceiverResolver,
	amounts AmountValidator,
	funds FundsManager,
	ledger LedgerRecorder,
	failures FailureRecorder,
	walletSv WalletService,
	logger *slog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		uow:      uow,
		wallets:  wallets,
		gate:     gate,
		resolver: resolver,
		amounts:  amounts,
		funds:    funds,
		ledger:   ledger,
		failures: failures,
		walletSv: walletSv,
		logger:   logger,
		now:      time.Now,
	}
}

// transferPlan is everything validated before the unit of work opens
type transferPlan struct {
	sender       *actor.Actor
	senderWallet *wallet.Wallet
	receiver     *Receiver
	amount       decimal.Decimal
	draft        transaction.Draft
	origin       transaction.Origin
	now          time.Time
}

// ExecuteTransfer moves funds between two wallets. Every failure is a *transfer.Error;
// failures before the reservation leave no trace, later ones leave a failed transaction.
func (s *TransferServiceImpl) ExecuteTransfer(ctx context.Context, cmd transfer.Command) (*transfer.Result, error) {
	logger := s.logger.With("sender_id", cmd.SenderID)
	now := cmd.Now
	if now.IsZero() {
		now = s.now().UTC()
	}

	if !cmd.Capabilities.Has(actor.CapTransfer) {
		logger.Warn("Transfer refused, sender role lacks transfer capability")
		return nil, transfer.ErrForbidden
	}

	key := transaction.ScopedKey(cmd.SenderID, cmd.IdempotencyKey)
	if replay, err := s.replay(ctx, key, func(t *transaction.Transaction) bool {
		return t.SenderID != nil && *t.SenderID == cmd.SenderID
	}); replay != nil || err != nil {
		return replay, err
	}

	// 1. Resolve receiver
	receiver, err := s.resolver.Resolve(ctx, cmd.ReceiverIdentifier)
	if err != nil {
		return nil, asTransferError(err, logger, "Failed to resolve receiver")
	}

	// 2. Self-transfer guard
	if receiver.UserID == cmd.SenderID {
		return nil, transfer.ErrInvalidReceiver
	}

	// 3. Eligibility, read fresh at now
	sender, ok, err := s.gate.Eligible(ctx, cmd.SenderID, now)
	if err != nil && !errors.Is(err, actor.ErrActorNotFound{}) {
		return nil, asTransferError(err, logger, "Failed to check sender eligibility")
	}
	if !ok {
		return nil, transfer.ErrSenderIneligible.Wrap(err)
	}
	receiverActor, ok, err := s.gate.Eligible(ctx, receiver.UserID, now)
	if err != nil && !errors.Is(err, actor.ErrActorNotFound{}) {
		return nil, asTransferError(err, logger, "Failed to check receiver eligibility")
	}
	if !ok || !receiverActor.Capabilities().Has(actor.CapReceive) {
		return nil, transfer.ErrReceiverIneligible.Wrap(err)
	}
	if receiver.Wallet == nil {
		return nil, transfer.ErrReceiverWalletMissing
	}

	// 4. Amount bounds
	amount, err := s.amounts.Validate(cmd.Amount, LimitTransfer)
	if err != nil {
		return nil, err
	}

	// 5. Sufficiency, re-checked under the row lock
	senderWallet, err := s.wallets.GetByUserID(ctx, cmd.SenderID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			return nil, transfer.ErrInsufficientBalance
		}
		return nil, asTransferError(err, logger, "Failed to load sender wallet")
	}
	if !senderWallet.CanCover(amount) {
		return nil, transfer.ErrInsufficientBalance
	}

	txnType := transaction.TypeInternalTransfer
	if receiver.Via == shared.ReceiverViaQR {
		txnType = transaction.TypeQRPayment
	}
	senderID, receiverID := cmd.SenderID, receiver.UserID
	plan := &transferPlan{
		sender:       sender,
		senderWallet: senderWallet,
		receiver:     receiver,
		amount:       amount,
		now:          now,
		origin:       cmd.Origin,
		draft: transaction.Draft{
			SenderID:       &senderID,
			ReceiverID:     &receiverID,
			Type:           txnType,
			Amount:         amount,
			Fee:            decimal.Zero,
			Description:    cmd.Description,
			IdempotencyKey: key,
			Metadata: map[string]string{
				transaction.MetaSenderWallet:   senderWallet.WalletNumber,
				transaction.MetaReceiverWallet: receiver.Wallet.WalletNumber,
				transaction.MetaDescription:    cmd.Description,
				transaction.MetaReceiverVia:    string(receiver.Via),
			},
		},
	}
	if plan.origin.ActorID == nil {
		plan.origin.ActorID = &senderID
	}

	txn, err := s.settle(ctx, plan, logger)
	if err != nil {
		if isKeyConflict(err) {
			// Lost the race for the key to a concurrent request; answer with its result
			return s.replay(ctx, key, func(t *transaction.Transaction) bool {
				return t.SenderID != nil && *t.SenderID == cmd.SenderID
			})
		}
		return nil, err
	}

	logger.Info("Transfer completed",
		"reference", txn.Reference,
		"receiver_id", receiver.UserID,
		"amount", amount.String(),
	)
	return &transfer.Result{
		Transaction: txn,
		Sender:      &transfer.Party{UserID: sender.UserID, Name: sender.Name, WalletNumber: senderWallet.WalletNumber},
		Receiver:    &transfer.Party{UserID: receiver.UserID, Name: receiver.Name, WalletNumber: receiver.Wallet.WalletNumber},
	}, nil
}

// settle runs steps 6 to 9 in one unit of work. The reservation is released on every
// exit path before the session ends, including a failed commit.
func (s *TransferServiceImpl) settle(ctx context.Context, p *transferPlan, logger *slog.Logger) (txn *transaction.Transaction, err error) {
	sess, err := s.uow.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin unit of work", "error", err)
		return nil, transfer.ErrTransferFailed.Wrap(err)
	}

	reserved := false
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if reserved {
			if releaseErr := s.funds.Release(cleanupCtx, sess, p.senderWallet.ID, p.amount); releaseErr != nil {
				logger.Debug("Release on failed session did not apply, rollback discards the reservation", "error", releaseErr)
			}
		}
		if rbErr := sess.Rollback(cleanupCtx); rbErr != nil {
			logger.Error("Failed to roll back unit of work", "error", rbErr)
		}
	}()

	// Fresh copies under row lock, ascending id order
	locked, err := s.funds.LockWallets(ctx, sess, p.senderWallet.ID, p.receiver.Wallet.ID)
	if err != nil {
		return nil, asTransferError(err, logger, "Failed to lock wallets")
	}
	if fresh := locked[p.senderWallet.ID]; fresh == nil || !fresh.CanCover(p.amount) {
		return nil, transfer.ErrInsufficientBalance
	}

	// 6. Reserve
	if err := s.funds.Reserve(ctx, sess, p.senderWallet.ID, p.amount); err != nil {
		return nil, asTransferError(err, logger, "Failed to reserve funds")
	}
	reserved = true

	// 7 to 9. Anything failing from here on is recorded as a failed transaction
	txn, err = s.move(ctx, sess, p, &reserved)
	if err == nil {
		if err = sess.Commit(ctx); err != nil {
			logger.Error("Failed to commit transfer", "reference", txn.Reference, "error", err)
			err = fmt.Errorf("failed to commit transfer: %w", err)
		}
	}
	if err != nil {
		if isKeyConflict(err) {
			return nil, err
		}
		return nil, s.recordFailure(ctx, p, err, logger)
	}
	return txn, nil
}

// isKeyConflict reports a concurrent request that recorded the same idempotency key first
func isKeyConflict(err error) bool {
	var dup transaction.ErrDuplicateTransaction
	return errors.As(err, &dup) && dup.IdempotencyKey != ""
}

func (s *TransferServiceImpl) move(ctx context.Context, sess transfer.Session, p *transferPlan, reserved *bool) (*transaction.Transaction, error) {
	txn, err := s.ledger.Record(ctx, sess, p.draft, p.now)
	if err != nil {
		return nil, err
	}

	if err := s.funds.Debit(ctx, sess, p.senderWallet.ID, p.amount); err != nil {
		return nil, err
	}
	if err := s.funds.Release(ctx, sess, p.senderWallet.ID, p.amount); err != nil {
		return nil, err
	}
	*reserved = false
	if err := s.funds.Credit(ctx, sess, p.receiver.Wallet.ID, p.amount); err != nil {
		return nil, err
	}

	if err := s.ledger.Complete(ctx, sess, txn, p.origin, p.now); err != nil {
		return nil, err
	}
	return txn, nil
}

// recordFailure writes the failed attempt after the rollback has run and reports a generic failure
func (s *TransferServiceImpl) recordFailure(ctx context.Context, p *transferPlan, cause error, logger *slog.Logger) error {
	logger.Error("Transfer failed after reservation", "amount", p.amount.String(), "error", cause)

	note := transfer.MessageOf(cause)
	var te *transfer.Error
	if !errors.As(cause, &te) {
		note = cause.Error()
	}
	if _, err := s.failures.RecordFailure(ctx, p.draft, p.origin, note, p.now); err != nil {
		logger.Error("Failed to record failed transfer", "error", err)
	}
	return transfer.ErrTransferFailed.Wrap(cause)
}

// ValidateReceiver resolves identifier for display before the user confirms a transfer
func (s *TransferServiceImpl) ValidateReceiver(ctx context.Context, identifier string, requestingUserID int64) (*transfer.Party, error) {
	logger := s.logger.With("user_id", requestingUserID)

	receiver, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, asTransferError(err, logger, "Failed to resolve receiver")
	}
	if receiver.UserID == requestingUserID {
		return nil, transfer.ErrInvalidReceiver
	}

	_, ok, err := s.gate.Eligible(ctx, receiver.UserID, s.now().UTC())
	if err != nil && !errors.Is(err, actor.ErrActorNotFound{}) {
		return nil, asTransferError(err, logger, "Failed to check receiver eligibility")
	}
	if !ok {
		return nil, transfer.ErrReceiverIneligible.Wrap(err)
	}
	if receiver.Wallet == nil {
		return nil, transfer.ErrReceiverWalletMissing
	}

	return &transfer.Party{UserID: receiver.UserID, Name: receiver.Name, WalletNumber: receiver.Wallet.WalletNumber}, nil
}

// replay returns the transaction recorded under key when owns accepts it.
// A key recorded for somebody else is refused.
func (s *TransferServiceImpl) replay(ctx context.Context, key string, owns func(*transaction.Transaction) bool) (*transfer.Result, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := s.ledger.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, transfer.ErrTransferFailed.Wrap(err)
	}
	if existing == nil {
		return nil, nil
	}
	if !owns(existing) {
		return nil, transfer.NewError(transfer.KindTransferFailed, "idempotency key already used", nil)
	}

	s.logger.Info("Idempotency key replayed", "reference", existing.Reference)
	return &transfer.Result{
		Transaction: existing,
		Sender:      s.party(ctx, existing.SenderID, existing.Metadata[transaction.MetaSenderWallet]),
		Receiver:    s.party(ctx, existing.ReceiverID, existing.Metadata[transaction.MetaReceiverWallet]),
		Replayed:    true,
	}, nil
}

// party expands a stored participant for display; an unreadable user keeps the id only
func (s *TransferServiceImpl) party(ctx context.Context, userID *int64, walletNumber string) *transfer.Party {
	if userID == nil {
		return nil
	}
	p := &transfer.Party{UserID: *userID, WalletNumber: walletNumber}
	if a, _, err := s.gate.Eligible(ctx, *userID, s.now().UTC()); err == nil {
		p.Name = a.Name
	}
	return p
}

// asTransferError keeps *transfer.Error values and wraps anything else as TRANSFER_FAILED
func asTransferError(err error, logger *slog.Logger, msg string) error {
	var te *transfer.Error
	if errors.As(err, &te) {
		return err
	}
	logger.Error(msg, "error", err)
	return transfer.ErrTransferFailed.Wrap(err)
}
