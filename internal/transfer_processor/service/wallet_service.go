package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/identifier"
)

type WalletServiceImpl struct {
	wallets   wallet.Repository
	generator *identifier.Generator
	logger    *slog.Logger
}

func NewWalletService(wallets wallet.Repository, generator *identifier.Generator, logger *slog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		wallets:   wallets,
		generator: generator,
		logger:    logger,
	}
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
// When a concurrent call creates it first, the winner's wallet is returned.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, userID int64, now time.Time) (*wallet.Wallet, error) {
	existing, err := s.wallets.GetByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, wallet.ErrWalletNotFound{}) {
		return nil, fmt.Errorf("failed to load wallet for user %d: %w", userID, err)
	}

	// A duplicate on the number alone means the generated number raced; try another
	for attempt := 0; attempt < 3; attempt++ {
		number, err := s.generator.UniqueWalletNumber(ctx, s.wallets.ExistsByNumber)
		if err != nil {
			return nil, err
		}

		w := wallet.NewWallet(userID, number, now)
		err = s.wallets.Create(ctx, w)
		if err == nil {
			s.logger.Info("Wallet created", "user_id", userID, "wallet_number", number)
			return w, nil
		}
		if !errors.Is(err, wallet.ErrDuplicateWallet{}) {
			return nil, fmt.Errorf("failed to create wallet for user %d: %w", userID, err)
		}

		winner, getErr := s.wallets.GetByUserID(ctx, userID)
		if getErr == nil {
			return winner, nil
		}
		if !errors.Is(getErr, wallet.ErrWalletNotFound{}) {
			return nil, fmt.Errorf("failed to reload wallet for user %d: %w", userID, getErr)
		}
	}
	return nil, fmt.Errorf("failed to create wallet for user %d: wallet number collisions", userID)
}
