package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/stretchr/testify/mock"
)

type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) ExecuteTransfer(ctx context.Context, cmd transfer.Command) (*transfer.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Result), args.Error(1)
}

func (m *MockTransferService) ValidateReceiver(ctx context.Context, identifier string, requestingUserID int64) (*transfer.Party, error) {
	args := m.Called(ctx, identifier, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Party), args.Error(1)
}

func (m *MockTransferService) TopUp(ctx context.Context, cmd transfer.TopUpCommand) (*transfer.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.Result), args.Error(1)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) SubmitTransfer(ctx context.Context, request *shared.TransferRequest) (string, *transaction.Transaction, error) {
	args := m.Called(ctx, request)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*transaction.Transaction), args.Error(2)
}

func (m *MockTransactionService) GetByReference(ctx context.Context, viewer *actor.Actor, reference string) (*transaction.Transaction, []*transaction.Log, error) {
	args := m.Called(ctx, viewer, reference)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*transaction.Transaction), args.Get(1).([]*transaction.Log), args.Error(2)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, viewer *actor.Actor, query service.ListQuery) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, viewer, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetMyWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) GetHistory(ctx context.Context, userID int64, filter history.Filter, page, perPage int) ([]*history.Entry, int64, error) {
	args := m.Called(ctx, userID, filter, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*history.Entry), args.Get(1).(int64), args.Error(2)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestRouter returns a router that runs every request as a
func setupTestRouter(a *actor.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, a)
		c.Next()
	})
	return r
}
