package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/platform/messaging/producers"
)

// EventDispatcher delivers one outbox message to its downstream consumers
type EventDispatcher interface {
	Dispatch(ctx context.Context, message *outbox.Message) error
}

// EventDispatcherImpl writes the per-user history read model and announces the event on Kafka
type EventDispatcherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	events      producers.EventPublisher
	logger      *slog.Logger
}

// NewEventDispatcher creates a new dispatcher. events may be nil when no topic is configured.
func NewEventDispatcher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	events producers.EventPublisher,
	logger *slog.Logger,
) EventDispatcher {
	return &EventDispatcherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		events:      events,
		logger:      logger,
	}
}

// Dispatch is safe to repeat: history upserts are keyed by (reference, user) and
// event consumers dedupe on reference.
func (d *EventDispatcherImpl) Dispatch(ctx context.Context, message *outbox.Message) error {
	logger := d.logger.With("outbox_id", message.ID, "reference", message.Reference)

	event, err := message.Event()
	if err != nil {
		logger.Error("Failed to decode transaction event from outbox payload", "error", err)
		if updateErr := d.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	for _, entry := range history.FromEvent(event) {
		if err := d.historyRepo.Upsert(ctx, entry); err != nil {
			logger.Error("Failed to write history entry", "user_id", entry.UserID, "error", err)
			return fmt.Errorf("failed to write history for %s: %w", event.Reference, err)
		}
	}

	if d.events != nil {
		if err := d.events.PublishEvent(ctx, event); err != nil {
			logger.Error("Failed to publish transaction event", "error", err)
			return fmt.Errorf("failed to publish event for %s: %w", event.Reference, err)
		}
	}

	if err := d.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("event for %s delivered, but failed to mark outbox %d as PROCESSED: %w", event.Reference, message.ID, err)
	}

	logger.Info("Outbox message dispatched", "status", event.Status)
	return nil
}
