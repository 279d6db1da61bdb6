package service

import (
	"context"
	"time"

	"github.com/spwallet-ledger/internal/domain/wallet"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	provisioner WalletProvisioner
	now         func() time.Time
}

// NewWalletService creates a new wallet service
func NewWalletService(provisioner WalletProvisioner) WalletService {
	return &WalletServiceImpl{
		provisioner: provisioner,
		now:         time.Now,
	}
}

// GetMyWallet returns the user's wallet, creating it on first access
func (s *WalletServiceImpl) GetMyWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	return s.provisioner.GetOrCreate(ctx, userID, s.now().UTC())
}
