package wallet

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWallet(42, "SP12345678", now)

	require.NotNil(t, w)
	assert.NotEqual(t, uuid.Nil, w.ID)
	assert.Equal(t, int64(42), w.UserID)
	assert.Equal(t, "SP12345678", w.WalletNumber)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.LockedBalance.IsZero())
	assert.True(t, w.IsActive)
	assert.Equal(t, now, w.CreatedAt)
	assert.Equal(t, now, w.UpdatedAt)
}

func TestWallet_Available(t *testing.T) {
	tests := []struct {
		name      string
		balance   string
		locked    string
		amount    string
		available string
		canCover  bool
	}{
		{"nothing locked", "50000", "0", "10000", "50000", true},
		{"partially locked", "50000", "45000", "10000", "5000", false},
		{"exact cover", "10000.50", "0.50", "10000", "10000", true},
		{"empty wallet", "0", "0", "1000", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{
				Balance:       decimal.RequireFromString(tt.balance),
				LockedBalance: decimal.RequireFromString(tt.locked),
			}
			assert.True(t, decimal.RequireFromString(tt.available).Equal(w.Available()))
			assert.Equal(t, tt.canCover, w.CanCover(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "10.13", Normalize(decimal.RequireFromString("10.125")).StringFixed(Scale))
	assert.Equal(t, "1000.00", Normalize(decimal.NewFromInt(1000)).StringFixed(Scale))
}

func TestErrWalletNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := fmt.Errorf("lookup: %w", ErrWalletNotFound{ID: id})

	assert.True(t, errors.Is(err, ErrWalletNotFound{}))
	assert.True(t, errors.Is(err, ErrWalletNotFound{ID: id}))
	assert.False(t, errors.Is(err, ErrWalletNotFound{ID: uuid.New()}))

	byNumber := ErrWalletNotFound{Number: "SP00000001"}
	assert.True(t, errors.Is(byNumber, ErrWalletNotFound{Number: "SP00000001"}))
	assert.False(t, errors.Is(byNumber, ErrWalletNotFound{Number: "SP00000002"}))
	assert.Equal(t, "wallet not found: SP00000001", byNumber.Error())
	assert.Equal(t, "wallet not found for user: 7", ErrWalletNotFound{UserID: 7}.Error())
}

func TestErrDuplicateWallet_Is(t *testing.T) {
	err := fmt.Errorf("create: %w", ErrDuplicateWallet{UserID: 1, Number: "SP11111111"})
	assert.True(t, errors.Is(err, ErrDuplicateWallet{}))
}
