package wallet

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines wallet persistence and the four balance primitives.
// Each primitive is a single conditional update, atomic per wallet.
type Repository interface {
	Create(ctx context.Context, wallet *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByUserID(ctx context.Context, userID int64) (*Wallet, error)
	GetByNumber(ctx context.Context, walletNumber string) (*Wallet, error)
	ExistsByNumber(ctx context.Context, walletNumber string) (bool, error)

	// LockForUpdate row-locks the given wallets in ascending id order and returns fresh copies
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*Wallet, error)

	// LockBalance reserves amount iff balance - locked_balance >= amount
	LockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error)
	// UnlockBalance releases amount, flooring locked_balance at zero
	UnlockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	// DeductBalance removes amount iff balance >= amount
	DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error)
	AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// ErrWalletNotFound indicates a missing wallet. Zero-valued fields in a target match any wallet.
type ErrWalletNotFound struct {
	ID     uuid.UUID
	UserID int64
	Number string
}

func (e ErrWalletNotFound) Error() string {
	switch {
	case e.Number != "":
		return "wallet not found: " + e.Number
	case e.UserID != 0:
		return "wallet not found for user: " + strconv.FormatInt(e.UserID, 10)
	default:
		return "wallet not found: " + e.ID.String()
	}
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.ID != uuid.Nil && t.ID != e.ID {
		return false
	}
	if t.UserID != 0 && t.UserID != e.UserID {
		return false
	}
	return t.Number == "" || t.Number == e.Number
}

// ErrDuplicateWallet indicates a second wallet for a user or a reused wallet number
type ErrDuplicateWallet struct {
	UserID int64
	Number string
}

func (e ErrDuplicateWallet) Error() string {
	return "duplicate wallet for user " + strconv.FormatInt(e.UserID, 10) + " or number " + e.Number
}

// Is matches any ErrDuplicateWallet
func (e ErrDuplicateWallet) Is(target error) bool {
	_, ok := target.(ErrDuplicateWallet)
	return ok
}
