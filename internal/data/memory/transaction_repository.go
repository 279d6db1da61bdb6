package memory

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

type transactionRepo struct {
	store *Store
	sess  *session
}

func (r *transactionRepo) run(ctx context.Context, fn func(s *session) error) error {
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

func (r *transactionRepo) Create(ctx context.Context, txn *transaction.Transaction) error {
	return r.run(ctx, func(s *session) error {
		s.store.mu.Lock()
		err := s.store.uniqueTransaction(txn)
		s.store.mu.Unlock()
		if err != nil {
			return err
		}
		for id := range s.created {
			staged := s.txns[id]
			if staged.Reference == txn.Reference {
				return transaction.ErrDuplicateTransaction{Reference: txn.Reference}
			}
			if staged.IdempotencyKey != nil && txn.IdempotencyKey != nil && *staged.IdempotencyKey == *txn.IdempotencyKey {
				return transaction.ErrDuplicateTransaction{Reference: txn.Reference, IdempotencyKey: *txn.IdempotencyKey}
			}
		}

		s.txns[txn.ID] = cloneTransaction(txn)
		s.created[txn.ID] = true
		return nil
	})
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var found *transaction.Transaction
	err := r.run(ctx, func(s *session) error {
		found = s.lookupTransaction(id)
		if found == nil {
			return transaction.ErrTransactionNotFound{Reference: id.String()}
		}
		return nil
	})
	return found, err
}

func (r *transactionRepo) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	var found *transaction.Transaction
	err := r.run(ctx, func(s *session) error {
		found = s.findTransaction(func(t *transaction.Transaction) bool { return t.Reference == reference })
		if found == nil {
			return transaction.ErrTransactionNotFound{Reference: reference}
		}
		return nil
	})
	return found, err
}

// GetByIdempotencyKey returns nil, nil for an unused key
func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	var found *transaction.Transaction
	err := r.run(ctx, func(s *session) error {
		found = s.findTransaction(func(t *transaction.Transaction) bool {
			return t.IdempotencyKey != nil && *t.IdempotencyKey == key
		})
		return nil
	})
	return found, err
}

func (r *transactionRepo) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	txn, err := r.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			return false, nil
		}
		return false, err
	}
	return txn != nil, nil
}

// UpdateStatus stages txn's new status if the visible status still equals from.
// Commit re-checks the guard for rows this session did not create.
func (r *transactionRepo) UpdateStatus(ctx context.Context, txn *transaction.Transaction, from transaction.Status) error {
	return r.run(ctx, func(s *session) error {
		current := s.lookupTransaction(txn.ID)
		if current == nil {
			return transaction.ErrTransactionNotFound{Reference: txn.Reference}
		}
		if current.Status != from {
			return transaction.ErrInvalidTransition{From: from, To: txn.Status}
		}

		if _, ok := s.expected[txn.ID]; !ok && !s.created[txn.ID] {
			s.expected[txn.ID] = from
		}
		current.Status = txn.Status
		current.FailureReason = txn.FailureReason
		current.ProcessedAt = txn.ProcessedAt
		current.UpdatedAt = txn.UpdatedAt
		s.txns[txn.ID] = current
		return nil
	})
}

func (r *transactionRepo) AppendLog(ctx context.Context, log *transaction.Log) error {
	return r.run(ctx, func(s *session) error {
		s.logs = append(s.logs, cloneLog(log))
		return nil
	})
}

func (r *transactionRepo) GetLogs(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Log, error) {
	var logs []*transaction.Log
	err := r.run(ctx, func(s *session) error {
		s.store.mu.Lock()
		for _, l := range s.store.logs[transactionID] {
			logs = append(logs, cloneLog(l))
		}
		s.store.mu.Unlock()
		for _, l := range s.logs {
			if l.TransactionID == transactionID {
				logs = append(logs, cloneLog(l))
			}
		}
		return nil
	})
	slices.SortStableFunc(logs, func(a, b *transaction.Log) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return logs, err
}

// List pages through matching transactions, newest first
func (r *transactionRepo) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	var matched []*transaction.Transaction
	err := r.run(ctx, func(s *session) error {
		for _, t := range s.visibleTransactions() {
			if matchesFilter(t, filter) {
				matched = append(matched, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(matched, func(a, b *transaction.Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Reference, a.Reference)
	})

	total := int64(len(matched))
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	if filter.Offset >= len(matched) {
		return []*transaction.Transaction{}, total, nil
	}
	end := min(filter.Offset+limit, len(matched))
	return matched[filter.Offset:end], total, nil
}

func matchesFilter(t *transaction.Transaction, f transaction.Filter) bool {
	if f.UserID != nil && !t.Involves(*f.UserID) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

// lookupTransaction returns a copy of the session's version of a row, or the committed one
func (s *session) lookupTransaction(id uuid.UUID) *transaction.Transaction {
	if t, ok := s.txns[id]; ok {
		return cloneTransaction(t)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if t, ok := s.store.transactions[id]; ok {
		return cloneTransaction(t)
	}
	return nil
}

func (s *session) findTransaction(match func(t *transaction.Transaction) bool) *transaction.Transaction {
	for _, t := range s.visibleTransactions() {
		if match(t) {
			return t
		}
	}
	return nil
}

// visibleTransactions merges committed rows with the session's staged versions
func (s *session) visibleTransactions() []*transaction.Transaction {
	s.store.mu.Lock()
	out := make([]*transaction.Transaction, 0, len(s.store.transactions)+len(s.created))
	for id, t := range s.store.transactions {
		if _, staged := s.txns[id]; !staged {
			out = append(out, cloneTransaction(t))
		}
	}
	s.store.mu.Unlock()

	for _, t := range s.txns {
		out = append(out, cloneTransaction(t))
	}
	return out
}
