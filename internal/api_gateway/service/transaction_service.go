package service

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/platform/messaging/producers"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	txnRepo  transaction.Repository
	producer producers.TransferRequestPublisher
	logger   *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, txnRepo transaction.Repository, producer producers.TransferRequestPublisher) TransactionService {
	return &TransactionServiceImpl{
		txnRepo:  txnRepo,
		producer: producer,
		logger:   logger,
	}
}

// SubmitTransfer publishes a transfer request, short-circuiting when the sender already used the idempotency key
func (s *TransactionServiceImpl) SubmitTransfer(ctx context.Context, request *shared.TransferRequest) (string, *transaction.Transaction, error) {
	idempotencyKey := transaction.ScopedKey(request.SenderID, request.IdempotencyKey)

	if idempotencyKey != "" {
		existing, err := s.txnRepo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			s.logger.Error("Failed to check for existing transaction with idempotency key",
				"idempotency_key", idempotencyKey,
				"error", err,
			)
			return "", nil, err
		}

		if existing != nil && existing.SenderID != nil && *existing.SenderID == request.SenderID {
			s.logger.Info("Found existing transaction with idempotency key",
				"idempotency_key", idempotencyKey,
				"reference", existing.Reference,
				"status", string(existing.Status),
			)
			return request.RequestID.String(), existing, nil
		}
	}

	if err := s.producer.PublishTransferRequest(ctx, request); err != nil {
		s.logger.Error("Failed to publish transfer request",
			"request_id", request.RequestID.String(),
			"sender_id", request.SenderID,
			"amount", request.Amount,
			"error", err,
		)
		return "", nil, err
	}

	s.logger.Info("Transfer request published",
		"request_id", request.RequestID.String(),
		"sender_id", request.SenderID,
		"amount", request.Amount,
	)
	return request.RequestID.String(), nil, nil
}

// GetByReference returns a transaction and its logs. Parties and view_any holders may see it;
// everyone else gets not-found so references cannot be probed.
func (s *TransactionServiceImpl) GetByReference(ctx context.Context, viewer *actor.Actor, reference string) (*transaction.Transaction, []*transaction.Log, error) {
	txn, err := s.txnRepo.GetByReference(ctx, reference)
	if err != nil {
		if !errors.Is(err, transaction.ErrTransactionNotFound{}) {
			s.logger.Error("Failed to get transaction by reference", "reference", reference, "error", err)
		}
		return nil, nil, err
	}

	if !txn.Involves(viewer.UserID) && !viewer.Capabilities().Has(actor.CapViewAny) {
		s.logger.Warn("Transaction lookup by non-party", "reference", reference, "user_id", viewer.UserID)
		return nil, nil, transaction.ErrTransactionNotFound{Reference: reference}
	}

	logs, err := s.txnRepo.GetLogs(ctx, txn.ID)
	if err != nil {
		s.logger.Error("Failed to get transaction logs", "reference", reference, "error", err)
		return nil, nil, err
	}
	return txn, logs, nil
}

// ListTransactions returns a page of the viewer's transactions and the total count
func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, viewer *actor.Actor, query ListQuery) ([]*transaction.Transaction, int64, error) {
	userID := viewer.UserID
	filter := transaction.Filter{
		UserID: &userID,
		Status: query.Status,
		Type:   query.Type,
		From:   query.From,
		To:     query.To,
		Limit:  query.PerPage,
		Offset: pageOffset(query.Page, query.PerPage),
	}

	txns, total, err := s.txnRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list transactions", "user_id", userID, "error", err)
		return nil, 0, err
	}
	return txns, total, nil
}

// pageOffset converts a 1-based page into a row offset, saturating instead of overflowing
func pageOffset(page, perPage int) int {
	if page < 1 || perPage < 1 {
		return 0
	}
	if page-1 > math.MaxInt32/perPage {
		return math.MaxInt32
	}
	return (page - 1) * perPage
}
