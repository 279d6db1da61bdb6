package components

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetByID(ctx context.Context, userID int64) (*actor.Actor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*actor.Actor), args.Error(1)
}

func (m *MockDirectory) GetByEmail(ctx context.Context, email string) (*actor.Actor, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*actor.Actor), args.Error(1)
}

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetByUserID(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetByNumber(ctx context.Context, walletNumber string) (*wallet.Wallet, error) {
	args := m.Called(ctx, walletNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) ExistsByNumber(ctx context.Context, walletNumber string) (bool, error) {
	args := m.Called(ctx, walletNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletRepo) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*wallet.Wallet, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) LockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletRepo) UnlockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockWalletRepo) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletRepo) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}
