package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

var errSessionClosed = errors.New("session already committed or rolled back")

type session struct {
	store *Store

	held       map[uuid.UUID]chan struct{}
	work       map[uuid.UUID]*wallet.Wallet // held or newly created wallets
	newWallets map[uuid.UUID]bool

	txns     map[uuid.UUID]*transaction.Transaction
	created  map[uuid.UUID]bool
	expected map[uuid.UUID]transaction.Status // committed rows updated here: status they must still hold
	logs     []*transaction.Log
	messages []*outbox.Message

	done bool
}

func (s *session) Wallets() wallet.Repository {
	return &walletRepo{store: s.store, sess: s}
}

func (s *session) Transactions() transaction.Repository {
	return &transactionRepo{store: s.store, sess: s}
}

func (s *session) Outbox() outbox.Repository {
	return &outboxRepo{store: s.store, sess: s}
}

// Commit publishes the session's writes atomically and releases its wallets.
// A conflict with a concurrently committed session leaves the store untouched.
func (s *session) Commit(_ context.Context) error {
	if s.done {
		return errSessionClosed
	}

	st := s.store
	st.mu.Lock()
	if err := s.conflicts(); err != nil {
		st.mu.Unlock()
		return err
	}

	for id, w := range s.work {
		st.wallets[id] = cloneWallet(w)
		if s.newWallets[id] {
			st.walletByUser[w.UserID] = id
			st.walletByNumber[w.WalletNumber] = id
		}
	}
	for id, txn := range s.txns {
		st.transactions[id] = cloneTransaction(txn)
		if s.created[id] {
			st.txnByRef[txn.Reference] = id
			if txn.IdempotencyKey != nil {
				st.txnByKey[*txn.IdempotencyKey] = id
			}
		}
	}
	for _, l := range s.logs {
		st.logs[l.TransactionID] = append(st.logs[l.TransactionID], cloneLog(l))
	}
	for _, m := range s.messages {
		st.messages = append(st.messages, cloneMessage(m))
	}
	st.mu.Unlock()

	s.done = true
	s.release()
	return nil
}

// Rollback discards the session's writes. It is a no-op after Commit.
func (s *session) Rollback(_ context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	s.release()
	return nil
}

// conflicts re-checks unique keys and guarded status updates against committed state.
// Callers hold store.mu.
func (s *session) conflicts() error {
	st := s.store
	for id := range s.newWallets {
		w := s.work[id]
		if _, ok := st.walletByUser[w.UserID]; ok {
			return wallet.ErrDuplicateWallet{UserID: w.UserID, Number: w.WalletNumber}
		}
		if _, ok := st.walletByNumber[w.WalletNumber]; ok {
			return wallet.ErrDuplicateWallet{UserID: w.UserID, Number: w.WalletNumber}
		}
	}
	for id := range s.created {
		txn := s.txns[id]
		if err := st.uniqueTransaction(txn); err != nil {
			return err
		}
	}
	for id, from := range s.expected {
		current, ok := st.transactions[id]
		if !ok || current.Status != from {
			return transaction.ErrInvalidTransition{From: from, To: s.txns[id].Status}
		}
	}
	return nil
}

func (s *session) release() {
	for id, ch := range s.held {
		<-ch
		delete(s.held, id)
	}
}

// lockWallet returns the session's working copy of a wallet, taking the hold first
func (s *session) lockWallet(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	if w, ok := s.work[id]; ok {
		return w, nil
	}

	ch, err := s.store.acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store.mu.Lock()
	committed, ok := s.store.wallets[id]
	s.store.mu.Unlock()
	if !ok {
		<-ch
		return nil, wallet.ErrWalletNotFound{ID: id}
	}

	s.held[id] = ch
	w := cloneWallet(committed)
	s.work[id] = w
	return w, nil
}

// uniqueTransaction checks reference and idempotency key against committed rows.
// Callers hold store.mu.
func (st *Store) uniqueTransaction(txn *transaction.Transaction) error {
	if _, ok := st.txnByRef[txn.Reference]; ok {
		return transaction.ErrDuplicateTransaction{Reference: txn.Reference}
	}
	if txn.IdempotencyKey != nil {
		if _, ok := st.txnByKey[*txn.IdempotencyKey]; ok {
			return transaction.ErrDuplicateTransaction{Reference: txn.Reference, IdempotencyKey: *txn.IdempotencyKey}
		}
	}
	return nil
}
