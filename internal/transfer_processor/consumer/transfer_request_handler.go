package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/platform/messaging/producers"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

// TransferRequestHandler handles incoming transfer request messages from Kafka
type TransferRequestHandler struct {
	executor  service.TransferExecutor
	directory actor.Directory
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

// NewTransferRequestHandler creates a new handler
func NewTransferRequestHandler(
	logger *slog.Logger,
	executor service.TransferExecutor,
	directory actor.Directory,
	producer producers.DeadLetterPublisher,
) *TransferRequestHandler {
	return &TransferRequestHandler{
		executor:  executor,
		directory: directory,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage processes Kafka messages. A nil return commits the offset.
func (h *TransferRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.TransferRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.deadLetter(ctx, producers.StageDecode, key, value, "Failed to unmarshal transfer request from Kafka message", err)
	}
	if err := request.Validate(); err != nil {
		return h.deadLetter(ctx, producers.StageValidate, key, value, "Transfer request is incomplete", err)
	}

	logger := h.logger.With("request_id", request.RequestID.String(), "sender_id", request.SenderID)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}
	logger.Info("Received transfer request for processing", "amount", request.Amount)

	sender, err := h.directory.GetByID(ctx, request.SenderID)
	if err != nil {
		if errors.Is(err, actor.ErrActorNotFound{}) {
			logger.Warn("Dropping transfer request from unknown sender")
			return nil
		}
		logger.Error("Failed to load sender", "error", err)
		return fmt.Errorf("loading sender %d failed: %w", request.SenderID, err)
	}

	senderID := request.SenderID
	cmd := transfer.Command{
		SenderID:           request.SenderID,
		ReceiverIdentifier: request.ReceiverIdentifier,
		Amount:             request.Amount,
		Description:        request.Description,
		IdempotencyKey:     idempotencyKey(&request),
		Capabilities:       sender.Capabilities(),
		Origin: transaction.Origin{
			ActorID:   &senderID,
			IPAddress: request.ClientIP,
			UserAgent: request.UserAgent,
		},
	}

	result, err := h.executor.ExecuteTransfer(ctx, cmd)
	if err != nil {
		kind := transfer.KindOf(err)
		if kind == transfer.KindLockFailed {
			// Nothing was recorded; redelivery retries the whole transfer
			logger.Warn("Transfer could not lock wallets, will retry", "error", err)
			return fmt.Errorf("transfer %s not processed: %w", request.RequestID.String(), err)
		}
		logger.Warn("Transfer rejected", "kind", kind, "reason", transfer.MessageOf(err), "error", err)
		return nil
	}

	logger.Info("Successfully processed transfer request",
		"reference", result.Transaction.Reference,
		"status", result.Transaction.Status,
		"replayed", result.Replayed,
	)
	return nil
}

func (h *TransferRequestHandler) deadLetter(ctx context.Context, stage string, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg, "error", cause, "message_key", string(key), "stage", stage)

	if h.producer != nil {
		reason := fmt.Sprintf("%s: %s", msg, cause.Error())
		dlqErr := h.producer.PublishToDLQ(ctx, producers.DeadLetter{Key: key, Value: value, Stage: stage, Reason: reason})
		switch {
		case errors.Is(dlqErr, producers.ErrDLQDisabled):
			// No DLQ configured; redelivering a malformed message cannot succeed
			h.logger.Warn("Dropping unprocessable message", "message_key", string(key))
			return nil
		case dlqErr != nil:
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		default:
			return nil
		}
	}
	// Allow Kafka retries
	return fmt.Errorf("unprocessable transfer request: %w", cause)
}

// idempotencyKey falls back to the request id so a redelivered message cannot move money twice
func idempotencyKey(r *shared.TransferRequest) string {
	if r.IdempotencyKey != "" {
		return r.IdempotencyKey
	}
	return "request:" + r.RequestID.String()
}
