package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Upsert(ctx context.Context, entry *history.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) GetByUser(ctx context.Context, userID int64, filter history.Filter) ([]*history.Entry, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*history.Entry), args.Error(1)
}

func (m *MockHistoryRepository) CountByUser(ctx context.Context, userID int64, filter history.Filter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func TestHistoryServiceImpl_GetHistory(t *testing.T) {
	ctx := context.Background()
	filter := history.Filter{Type: transaction.TypeQRPayment, Limit: 10, Offset: 10}

	t.Run("Success", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		service := NewHistoryService(newTestLogger(), repo)
		expected := []*history.Entry{{Reference: "TXN1", UserID: 5}}

		repo.On("GetByUser", ctx, int64(5), filter).Return(expected, nil).Once()
		repo.On("CountByUser", ctx, int64(5), filter).Return(int64(11), nil).Once()

		entries, total, err := service.GetHistory(ctx, 5, history.Filter{Type: transaction.TypeQRPayment}, 2, 10)

		assert.NoError(t, err)
		assert.Equal(t, expected, entries)
		assert.Equal(t, int64(11), total)
		repo.AssertExpectations(t)
	})

	t.Run("GetByUserError", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		service := NewHistoryService(newTestLogger(), repo)
		getErr := errors.New("mongo down")

		repo.On("GetByUser", ctx, int64(5), filter).Return(nil, getErr).Once()

		entries, total, err := service.GetHistory(ctx, 5, history.Filter{Type: transaction.TypeQRPayment}, 2, 10)

		assert.ErrorIs(t, err, getErr)
		assert.Nil(t, entries)
		assert.Zero(t, total)
		repo.AssertNotCalled(t, "CountByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CountByUserError", func(t *testing.T) {
		repo := new(MockHistoryRepository)
		service := NewHistoryService(newTestLogger(), repo)
		countErr := errors.New("mongo count error")

		repo.On("GetByUser", ctx, int64(5), filter).Return([]*history.Entry{}, nil).Once()
		repo.On("CountByUser", ctx, int64(5), filter).Return(int64(0), countErr).Once()

		entries, _, err := service.GetHistory(ctx, 5, history.Filter{Type: transaction.TypeQRPayment}, 2, 10)

		assert.ErrorIs(t, err, countErr)
		assert.Nil(t, entries)
	})
}
