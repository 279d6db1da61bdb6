package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// walletRepo runs against sess, or in a one-call session when sess is nil
type walletRepo struct {
	store *Store
	sess  *session
}

func (r *walletRepo) run(ctx context.Context, fn func(s *session) error) error {
	if r.sess != nil {
		if r.sess.done {
			return errSessionClosed
		}
		return fn(r.sess)
	}
	s := r.store.begin()
	defer s.Rollback(ctx)
	if err := fn(s); err != nil {
		return err
	}
	return s.Commit(ctx)
}

func (r *walletRepo) Create(ctx context.Context, w *wallet.Wallet) error {
	return r.run(ctx, func(s *session) error {
		s.store.mu.Lock()
		_, byUser := s.store.walletByUser[w.UserID]
		_, byNumber := s.store.walletByNumber[w.WalletNumber]
		s.store.mu.Unlock()
		if byUser || byNumber {
			return wallet.ErrDuplicateWallet{UserID: w.UserID, Number: w.WalletNumber}
		}
		for id := range s.newWallets {
			staged := s.work[id]
			if staged.UserID == w.UserID || staged.WalletNumber == w.WalletNumber {
				return wallet.ErrDuplicateWallet{UserID: w.UserID, Number: w.WalletNumber}
			}
		}

		s.work[w.ID] = cloneWallet(w)
		s.newWallets[w.ID] = true
		return nil
	})
}

func (r *walletRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	var found *wallet.Wallet
	err := r.run(ctx, func(s *session) error {
		if w, ok := s.work[id]; ok {
			found = cloneWallet(w)
			return nil
		}
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		w, ok := s.store.wallets[id]
		if !ok {
			return wallet.ErrWalletNotFound{ID: id}
		}
		found = cloneWallet(w)
		return nil
	})
	return found, err
}

func (r *walletRepo) GetByUserID(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	var found *wallet.Wallet
	err := r.run(ctx, func(s *session) error {
		found = s.findWallet(func(w *wallet.Wallet) bool { return w.UserID == userID }, func() (uuid.UUID, bool) {
			id, ok := s.store.walletByUser[userID]
			return id, ok
		})
		if found == nil {
			return wallet.ErrWalletNotFound{UserID: userID}
		}
		return nil
	})
	return found, err
}

func (r *walletRepo) GetByNumber(ctx context.Context, walletNumber string) (*wallet.Wallet, error) {
	var found *wallet.Wallet
	err := r.run(ctx, func(s *session) error {
		found = s.findWallet(func(w *wallet.Wallet) bool { return w.WalletNumber == walletNumber }, func() (uuid.UUID, bool) {
			id, ok := s.store.walletByNumber[walletNumber]
			return id, ok
		})
		if found == nil {
			return wallet.ErrWalletNotFound{Number: walletNumber}
		}
		return nil
	})
	return found, err
}

func (r *walletRepo) ExistsByNumber(ctx context.Context, walletNumber string) (bool, error) {
	_, err := r.GetByNumber(ctx, walletNumber)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LockForUpdate holds wallets in ascending id order, matching the Postgres repository
func (r *walletRepo) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*wallet.Wallet, error) {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	var locked []*wallet.Wallet
	err := r.run(ctx, func(s *session) error {
		for i, id := range ordered {
			if i > 0 && id == ordered[i-1] {
				continue
			}
			w, err := s.lockWallet(ctx, id)
			if err != nil {
				return err
			}
			locked = append(locked, cloneWallet(w))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

func (r *walletRepo) LockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	return r.mutate(ctx, id, amount, func(w *wallet.Wallet) bool {
		if w.Available().LessThan(amount) {
			return false
		}
		w.LockedBalance = w.LockedBalance.Add(amount)
		return true
	})
}

func (r *walletRepo) UnlockBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.mutate(ctx, id, amount, func(w *wallet.Wallet) bool {
		w.LockedBalance = decimal.Max(w.LockedBalance.Sub(amount), decimal.Zero)
		return true
	})
	return err
}

func (r *walletRepo) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	return r.mutate(ctx, id, amount, func(w *wallet.Wallet) bool {
		if w.Balance.LessThan(amount) {
			return false
		}
		w.Balance = w.Balance.Sub(amount)
		return true
	})
}

func (r *walletRepo) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	_, err := r.mutate(ctx, id, amount, func(w *wallet.Wallet) bool {
		w.Balance = w.Balance.Add(amount)
		return true
	})
	return err
}

// mutate applies a balance primitive to the held working copy
func (r *walletRepo) mutate(ctx context.Context, id uuid.UUID, amount decimal.Decimal, apply func(w *wallet.Wallet) bool) (bool, error) {
	if !amount.IsPositive() {
		return false, wallet.ErrInvalidAmount
	}

	var applied bool
	err := r.run(ctx, func(s *session) error {
		w, err := s.lockWallet(ctx, id)
		if err != nil {
			return err
		}
		if applied = apply(w); applied {
			w.UpdatedAt = s.store.now().UTC()
		}
		return nil
	})
	return applied, err
}

// findWallet looks in the session's own copies first, then in committed state
func (s *session) findWallet(match func(w *wallet.Wallet) bool, index func() (uuid.UUID, bool)) *wallet.Wallet {
	for _, w := range s.work {
		if match(w) {
			return cloneWallet(w)
		}
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	id, ok := index()
	if !ok {
		return nil
	}
	return cloneWallet(s.store.wallets[id])
}
