// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every balance primitive is a single conditional UPDATE so that its check and
// write cannot interleave with another session's.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/platform/persistence"
)

const walletColumns = `id, user_id, wallet_number, balance::text, locked_balance::text, is_active, created_at, updated_at`

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a pool-backed wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) *WalletRepository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet. A second wallet for the same user or a reused
// number yields wallet.ErrDuplicateWallet.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, wallet_number, balance, locked_balance, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.UserID,
		w.WalletNumber,
		amountArg(w.Balance),
		amountArg(w.LockedBalance),
		w.IsActive,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return wallet.ErrDuplicateWallet{UserID: w.UserID, Number: w.WalletNumber}
		}
		r.logger.Error("Failed to create wallet", "user_id", w.UserID, "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{ID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetByUserID retrieves the wallet owned by a user
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get wallet by user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get wallet by user: %w", err)
	}
	return w, nil
}

// GetByNumber retrieves a wallet by its human-readable number
func (r *WalletRepository) GetByNumber(ctx context.Context, walletNumber string) (*wallet.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_number = $1`

	w, err := scanWallet(r.querier.QueryRow(ctx, query, walletNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{Number: walletNumber}
		}
		r.logger.Error("Failed to get wallet by number", "wallet_number", walletNumber, "error", err)
		return nil, fmt.Errorf("failed to get wallet by number: %w", err)
	}
	return w, nil
}

// ExistsByNumber reports whether a wallet number is taken
func (r *WalletRepository) ExistsByNumber(ctx context.Context, walletNumber string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM wallets WHERE wallet_number = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, walletNumber).Scan(&exists); err != nil {
		r.logger.Error("Failed to check wallet number", "wallet_number", walletNumber, "error", err)
		return false, fmt.Errorf("failed to check wallet number: %w", err)
	}
	return exists, nil
}

// LockForUpdate row-locks wallets one by one in ascending id order, so two sessions
// locking the same pair always queue instead of deadlocking.
func (r *WalletRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*wallet.Wallet, error) {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`

	locked := make([]*wallet.Wallet, 0, len(ordered))
	for i, id := range ordered {
		if i > 0 && id == ordered[i-1] {
			continue
		}
		w, err := scanWallet(r.querier.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, wallet.ErrWalletNotFound{ID: id}
			}
			if isLockUnavailable(err) {
				r.logger.Warn("Wallet row lock not acquired", "id", id.String(), "error", err)
				return nil, fmt.Errorf("failed to lock wallet %s: %w", id, wallet.ErrLockUnavailable)
			}
			r.logger.Error("Failed to lock wallet", "id", id.String(), "error", err)
			return nil, fmt.Errorf("failed to lock wallet: %w", err)
		}
		locked = append(locked, w)
	}
	return locked, nil
}

// LockBalance reserves amount iff the available balance covers it
func (r *WalletRepository) LockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE wallets
		SET locked_balance = locked_balance + $2::numeric, updated_at = NOW()
		WHERE id = $1 AND balance - locked_balance >= $2::numeric
	`
	return r.conditionalUpdate(ctx, "lock balance", query, id, amount)
}

// UnlockBalance releases amount; locked_balance never drops below zero
func (r *WalletRepository) UnlockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET locked_balance = GREATEST(locked_balance - $2::numeric, 0), updated_at = NOW()
		WHERE id = $1
	`
	ok, err := r.conditionalUpdate(ctx, "unlock balance", query, id, amount)
	if err != nil {
		return err
	}
	if !ok {
		return wallet.ErrWalletNotFound{ID: id}
	}
	return nil
}

// DeductBalance removes amount iff the balance covers it
func (r *WalletRepository) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE id = $1 AND balance >= $2::numeric
	`
	return r.conditionalUpdate(ctx, "deduct balance", query, id, amount)
}

// AddBalance credits amount unconditionally
func (r *WalletRepository) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE wallets
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE id = $1
	`
	ok, err := r.conditionalUpdate(ctx, "add balance", query, id, amount)
	if err != nil {
		return err
	}
	if !ok {
		return wallet.ErrWalletNotFound{ID: id}
	}
	return nil
}

func (r *WalletRepository) conditionalUpdate(ctx context.Context, op, query string, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, wallet.ErrInvalidAmount
	}

	result, err := r.querier.Exec(ctx, query, id, amountArg(amount))
	if err != nil {
		if isLockUnavailable(err) {
			r.logger.Warn("Wallet row lock not acquired", "op", op, "id", id.String(), "error", err)
			return false, fmt.Errorf("failed to %s: %w", op, wallet.ErrLockUnavailable)
		}
		r.logger.Error("Failed to update wallet", "op", op, "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return result.RowsAffected() == 1, nil
}

func scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var (
		w               wallet.Wallet
		balance, locked string
	)
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.WalletNumber,
		&balance,
		&locked,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if w.Balance, err = parseAmount("balance", balance); err != nil {
		return nil, err
	}
	if w.LockedBalance, err = parseAmount("locked_balance", locked); err != nil {
		return nil, err
	}
	return &w, nil
}
