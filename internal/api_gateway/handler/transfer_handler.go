package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spwallet-ledger/internal/api_gateway/middleware"
	"github.com/spwallet-ledger/internal/api_gateway/service"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	core "github.com/spwallet-ledger/internal/transfer_processor/service"
)

// TransferHandler handles HTTP requests that move money
type TransferHandler struct {
	transfers          core.TransferService
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transfers core.TransferService, transactionService service.TransactionService) *TransferHandler {
	return &TransferHandler{
		transfers:          transfers,
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create runs a transfer synchronously and returns the finished transaction
func (h *TransferHandler) Create(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sender := middleware.GetActor(c)
	cmd := transfer.Command{
		SenderID:           sender.UserID,
		ReceiverIdentifier: req.Receiver,
		Amount:             req.Amount.String(),
		Description:        req.Description,
		IdempotencyKey:     c.GetHeader(middleware.IdempotencyKeyHeader),
		Capabilities:       sender.Capabilities(),
		Origin:             origin(c, sender),
	}

	result, err := h.transfers.ExecuteTransfer(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Warn("Transfer rejected",
			"sender_id", sender.UserID,
			"kind", transfer.KindOf(err),
			"error", err,
			"correlation_id", middleware.GetCorrelationID(c),
		)
		RespondTransferError(c, err)
		return
	}

	if result.Replayed {
		RespondOK(c, mapResultToResponse(result))
		return
	}
	RespondCreated(c, mapResultToResponse(result))
}

// CreateAsync hands the transfer to the processor over Kafka and returns at once
func (h *TransferHandler) CreateAsync(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sender := middleware.GetActor(c)
	if !sender.Capabilities().Has(actor.CapTransfer) {
		RespondTransferError(c, transfer.ErrForbidden)
		return
	}

	request := &shared.TransferRequest{
		RequestID:          uuid.New(),
		SenderID:           sender.UserID,
		ReceiverIdentifier: req.Receiver,
		Amount:             req.Amount.String(),
		Description:        req.Description,
		IdempotencyKey:     c.GetHeader(middleware.IdempotencyKeyHeader),
		CorrelationID:      middleware.GetCorrelationID(c),
		ClientIP:           c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
		Timestamp:          time.Now().UTC(),
	}

	requestID, existing, err := h.transactionService.SubmitTransfer(c.Request.Context(), request)
	if err != nil {
		h.logger.Error("Failed to submit transfer request", "sender_id", sender.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	if existing != nil {
		RespondOK(c, mapTransactionToResponse(existing))
		return
	}
	RespondAccepted(c, gin.H{
		"request_id": requestID,
		"status":     "ACCEPTED",
	})
}

// ValidateReceiver resolves a receiver identifier for display before the user confirms
func (h *TransferHandler) ValidateReceiver(c *gin.Context) {
	var req ValidateReceiverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	party, err := h.transfers.ValidateReceiver(c.Request.Context(), req.Receiver, middleware.GetActor(c).UserID)
	if err != nil {
		RespondTransferError(c, err)
		return
	}
	RespondOK(c, party)
}

// TopUp credits a user's wallet; only roles holding top_up may call it
func (h *TransferHandler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	admin := middleware.GetActor(c)
	cmd := transfer.TopUpCommand{
		UserID:         req.UserID,
		Amount:         req.Amount.String(),
		Description:    req.Description,
		IdempotencyKey: c.GetHeader(middleware.IdempotencyKeyHeader),
		Capabilities:   admin.Capabilities(),
		Origin:         origin(c, admin),
	}

	result, err := h.transfers.TopUp(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Warn("Top-up rejected", "admin_id", admin.UserID, "user_id", req.UserID, "kind", transfer.KindOf(err), "error", err)
		RespondTransferError(c, err)
		return
	}

	if result.Replayed {
		RespondOK(c, mapResultToResponse(result))
		return
	}
	RespondCreated(c, mapResultToResponse(result))
}

func origin(c *gin.Context, a *actor.Actor) transaction.Origin {
	id := a.UserID
	return transaction.Origin{
		ActorID:   &id,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
