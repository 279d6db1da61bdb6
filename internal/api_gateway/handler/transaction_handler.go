package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// TransactionHandler handles HTTP requests for transaction lookups
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByReference retrieves a transaction and its audit trail, returns 404 if not found
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	reference := c.Param("reference")

	txn, logs, err := h.transactionService.GetByReference(c.Request.Context(), middleware.GetActor(c), reference)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, mapDetailToResponse(txn, logs))
}

// List retrieves the caller's paginated transactions, newest first
func (h *TransactionHandler) List(c *gin.Context) {
	var query TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		RespondBadRequest(c, "to must not be before from")
		return
	}

	viewer := middleware.GetActor(c)
	txns, total, err := h.transactionService.ListTransactions(c.Request.Context(), viewer, service.ListQuery{
		Status:  transaction.Status(query.Status),
		Type:    transaction.Type(query.Type),
		From:    query.From,
		To:      query.To,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
	if err != nil {
		h.logger.Error("Failed to list transactions", "user_id", viewer.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	items := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		items = append(items, mapTransactionToResponse(txn))
	}
	RespondPage(c, items, query.Page, query.PerPage, int(total))
}
