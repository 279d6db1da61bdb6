package middleware

import (
	"context"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/stretchr/testify/mock"
)

// MockDirectory for testing
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetByID(ctx context.Context, userID int64) (*actor.Actor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*actor.Actor), args.Error(1)
}

func (m *MockDirectory) GetByEmail(ctx context.Context, email string) (*actor.Actor, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*actor.Actor), args.Error(1)
}
