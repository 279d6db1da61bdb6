package memory

import (
	"context"
	"slices"

	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/shared"
)

// outboxRepo stages Create in the session; status bookkeeping always hits committed messages
type outboxRepo struct {
	store *Store
	sess  *session
}

func (r *outboxRepo) Create(_ context.Context, message *outbox.Message) error {
	if r.sess != nil && r.sess.done {
		return errSessionClosed
	}

	r.store.mu.Lock()
	r.store.lastMessageID++
	message.ID = r.store.lastMessageID
	if r.sess == nil {
		r.store.messages = append(r.store.messages, cloneMessage(message))
	}
	r.store.mu.Unlock()

	if r.sess != nil {
		r.sess.messages = append(r.sess.messages, cloneMessage(message))
	}
	return nil
}

func (r *outboxRepo) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var pending []*outbox.Message
	for _, m := range r.store.messages {
		if m.Status == shared.OutboxStatusPending {
			pending = append(pending, cloneMessage(m))
		}
	}
	slices.SortStableFunc(pending, func(a, b *outbox.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	return r.update(id, func(m *outbox.Message) {
		m.Status = status
	})
}

func (r *outboxRepo) RecordFailure(_ context.Context, id int64, maxAttempts int) (int, shared.OutboxStatus, error) {
	var (
		attempts int
		status   shared.OutboxStatus
	)
	err := r.update(id, func(m *outbox.Message) {
		m.Attempts++
		if m.Attempts >= maxAttempts {
			m.Status = shared.OutboxStatusFailedToPublish
		}
		attempts, status = m.Attempts, m.Status
	})
	return attempts, status, err
}

func (r *outboxRepo) update(id int64, apply func(m *outbox.Message)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, m := range r.store.messages {
		if m.ID == id {
			apply(m)
			now := r.store.now().UTC()
			m.LastAttemptAt = &now
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}
