package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

// errDebitRefused means the conditional deduction matched no row although funds were reserved
var errDebitRefused = errors.New("balance no longer covers the reserved amount")

type FundsManagerImpl struct {
	logger *slog.Logger
}

func NewFundsManager(logger *slog.Logger) service.FundsManager {
	return &FundsManagerImpl{logger: logger}
}

// LockWallets takes the row locks of every wallet a transfer touches. A lock that cannot be
// taken within the store's timeout is transfer.ErrLockFailed.
func (m *FundsManagerImpl) LockWallets(ctx context.Context, sess transfer.Session, ids ...uuid.UUID) (map[uuid.UUID]*wallet.Wallet, error) {
	locked, err := sess.Wallets().LockForUpdate(ctx, ids...)
	if err != nil {
		if errors.Is(err, wallet.ErrLockUnavailable) {
			m.logger.Warn("Wallet lock unavailable", "wallets", len(ids), "error", err)
			return nil, transfer.ErrLockFailed.Wrap(err)
		}
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}

	byID := make(map[uuid.UUID]*wallet.Wallet, len(locked))
	for _, w := range locked {
		byID[w.ID] = w
	}
	return byID, nil
}

// Reserve moves amount from available into locked_balance
func (m *FundsManagerImpl) Reserve(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error {
	ok, err := sess.Wallets().LockBalance(ctx, walletID, amount)
	if err != nil {
		if errors.Is(err, wallet.ErrLockUnavailable) {
			return transfer.ErrLockFailed.Wrap(err)
		}
		return fmt.Errorf("failed to reserve funds on wallet %s: %w", walletID, err)
	}
	if !ok {
		m.logger.Warn("Reservation refused, available balance changed", "wallet_id", walletID.String(), "amount", amount.String())
		return transfer.ErrLockFailed
	}
	m.logger.Debug("Funds reserved", "wallet_id", walletID.String(), "amount", amount.String())
	return nil
}

func (m *FundsManagerImpl) Release(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error {
	if err := sess.Wallets().UnlockBalance(ctx, walletID, amount); err != nil {
		return fmt.Errorf("failed to release funds on wallet %s: %w", walletID, err)
	}
	return nil
}

func (m *FundsManagerImpl) Debit(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error {
	ok, err := sess.Wallets().DeductBalance(ctx, walletID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit wallet %s: %w", walletID, err)
	}
	if !ok {
		return fmt.Errorf("failed to debit wallet %s: %w", walletID, errDebitRefused)
	}
	return nil
}

func (m *FundsManagerImpl) Credit(ctx context.Context, sess transfer.Session, walletID uuid.UUID, amount decimal.Decimal) error {
	if err := sess.Wallets().AddBalance(ctx, walletID, amount); err != nil {
		return fmt.Errorf("failed to credit wallet %s: %w", walletID, err)
	}
	return nil
}
