package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// PaginatedResponse is a generic version of Response for testing paginated data
type PaginatedResponse[T any] struct {
	Data          []T        `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

func sampleTransaction(reference string) *transaction.Transaction {
	sender, receiver := int64(1), int64(2)
	return &transaction.Transaction{
		Reference:   reference,
		SenderID:    &sender,
		ReceiverID:  &receiver,
		Type:        transaction.TypeInternalTransfer,
		Status:      transaction.StatusCompleted,
		Amount:      decimal.RequireFromString("1500.5"),
		Fee:         decimal.Zero,
		TotalAmount: decimal.RequireFromString("1500.5"),
		CreatedAt:   time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestTransactionHandler_GetByReference(t *testing.T) {
	processing := transaction.StatusProcessing
	actorID := int64(1)

	tests := []struct {
		name         string
		setupMocks   func(s *MockTransactionService)
		expectedCode int
	}{
		{
			name: "found with logs",
			setupMocks: func(s *MockTransactionService) {
				logs := []*transaction.Log{
					{NewStatus: transaction.StatusProcessing, ActorID: &actorID, CreatedAt: time.Now()},
					{PreviousStatus: &processing, NewStatus: transaction.StatusCompleted, ActorID: &actorID, CreatedAt: time.Now()},
				}
				s.On("GetByReference", mock.Anything, ayu, "TXN1").Return(sampleTransaction("TXN1"), logs, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "not found",
			setupMocks: func(s *MockTransactionService) {
				s.On("GetByReference", mock.Anything, ayu, "TXN1").
					Return(nil, nil, transaction.ErrTransactionNotFound{Reference: "TXN1"}).Once()
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name: "store failure",
			setupMocks: func(s *MockTransactionService) {
				s.On("GetByReference", mock.Anything, ayu, "TXN1").Return(nil, nil, errors.New("connection reset")).Once()
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTransactionService)
			tt.setupMocks(svc)
			h := NewTransactionHandler(newTestLogger(), svc)
			r := setupTestRouter(ayu)
			r.GET("/transactions/:reference", h.GetByReference)

			rr := doJSON(t, r, http.MethodGet, "/transactions/TXN1", nil, nil)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedCode == http.StatusOK {
				var resp struct {
					Data TransactionDetailResponse `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "1500.50", resp.Data.Amount)
				require.Len(t, resp.Data.Logs, 2)
				assert.Empty(t, resp.Data.Logs[0].PreviousStatus)
				assert.Equal(t, "processing", resp.Data.Logs[1].PreviousStatus)
				assert.Equal(t, "completed", resp.Data.Logs[1].NewStatus)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestTransactionHandler_List(t *testing.T) {
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		query        string
		setupMocks   func(s *MockTransactionService)
		expectedCode int
		expectedMeta *MetaInfo
	}{
		{
			name:  "defaults",
			query: "",
			setupMocks: func(s *MockTransactionService) {
				s.On("ListTransactions", mock.Anything, ayu, service.ListQuery{Page: 1, PerPage: 10}).
					Return([]*transaction.Transaction{sampleTransaction("TXN1"), sampleTransaction("TXN2")}, int64(12), nil).Once()
			},
			expectedCode: http.StatusOK,
			expectedMeta: &MetaInfo{Page: 1, PerPage: 10, TotalPages: 2, TotalItems: 12},
		},
		{
			name:  "filters",
			query: "?status=completed&type=qr_payment&from=2026-10-01T00:00:00Z&to=2026-10-31T00:00:00Z&page=2&per_page=5",
			setupMocks: func(s *MockTransactionService) {
				s.On("ListTransactions", mock.Anything, ayu, mock.MatchedBy(func(q service.ListQuery) bool {
					return q.Status == transaction.StatusCompleted &&
						q.Type == transaction.TypeQRPayment &&
						q.From != nil && q.From.Equal(from) &&
						q.To != nil && q.To.Equal(to) &&
						q.Page == 2 && q.PerPage == 5
				})).Return([]*transaction.Transaction{}, int64(0), nil).Once()
			},
			expectedCode: http.StatusOK,
			expectedMeta: &MetaInfo{Page: 2, PerPage: 5},
		},
		{
			name:         "unknown status",
			query:        "?status=settled",
			setupMocks:   func(*MockTransactionService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "per page too large",
			query:        "?per_page=500",
			setupMocks:   func(*MockTransactionService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "page too large",
			query:        "?page=9223372036854775807&per_page=100",
			setupMocks:   func(*MockTransactionService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "page past the cap",
			query:        "?page=100001",
			setupMocks:   func(*MockTransactionService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "inverted range",
			query:        "?from=2026-10-31T00:00:00Z&to=2026-10-01T00:00:00Z",
			setupMocks:   func(*MockTransactionService) {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "",
			setupMocks: func(s *MockTransactionService) {
				s.On("ListTransactions", mock.Anything, ayu, mock.Anything).Return(nil, int64(0), errors.New("timeout")).Once()
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTransactionService)
			tt.setupMocks(svc)
			h := NewTransactionHandler(newTestLogger(), svc)
			r := setupTestRouter(ayu)
			r.GET("/transactions", h.List)

			rr := doJSON(t, r, http.MethodGet, "/transactions"+tt.query, nil, nil)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.expectedMeta != nil {
				var resp PaginatedResponse[TransactionResponse]
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedMeta, resp.Meta)
				assert.NotNil(t, resp.Data)
			}
			svc.AssertExpectations(t)
		})
	}
}
