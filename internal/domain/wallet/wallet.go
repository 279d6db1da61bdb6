package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrLockUnavailable means the wallet row could not be locked within the lock timeout
	ErrLockUnavailable = errors.New("wallet lock unavailable")
)

// Wallet is the balance-holding account owned 1:1 by a user
type Wallet struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	WalletNumber  string          `json:"wallet_number"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"` // Reserved by in-flight transfers
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewWallet creates an empty, active wallet for the user
func NewWallet(userID int64, walletNumber string, now time.Time) *Wallet {
	return &Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		WalletNumber:  walletNumber,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Available is the amount that may be spent or reserved: balance - locked_balance
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.LockedBalance)
}

// CanCover reports whether the available balance covers amount
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Available().GreaterThanOrEqual(amount)
}

// Normalize rounds an amount to the stored scale
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}
