package outbox_poller

import (
	"context"
	"io"
	"log/slog"

	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) RecordFailure(ctx context.Context, id int64, maxAttempts int) (int, shared.OutboxStatus, error) {
	args := m.Called(ctx, id, maxAttempts)
	return args.Int(0), args.Get(1).(shared.OutboxStatus), args.Error(2)
}

// MockHistoryRepo for testing
type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Upsert(ctx context.Context, entry *history.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepo) GetByUser(ctx context.Context, userID int64, filter history.Filter) ([]*history.Entry, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*history.Entry), args.Error(1)
}

func (m *MockHistoryRepo) CountByUser(ctx context.Context, userID int64, filter history.Filter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event *transaction.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventDispatcher for testing
type MockEventDispatcher struct {
	mock.Mock
}

func (m *MockEventDispatcher) Dispatch(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
