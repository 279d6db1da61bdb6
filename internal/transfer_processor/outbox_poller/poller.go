package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/shared"
)

// Poller relays committed outbox messages to the history store and the event topic
type Poller struct {
	outboxRepo  outbox.Repository
	dispatcher  EventDispatcher
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:  outboxRepo,
		dispatcher:  dispatcher,
		logger:      logger.With("component", "outbox_poller"),
		interval:    cfg.PollingInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxRetryAttempts,
	}
}

// Start drains the outbox once, then again on every tick until ctx is cancelled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"interval", p.interval.String(),
		"batch_size", p.batchSize,
		"max_attempts", p.maxAttempts,
	)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.drain(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain keeps fetching while batches come back full, so a backlog left by an outage
// clears without waiting one interval per batch
func (p *Poller) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := p.ProcessPending(ctx)
		if err != nil {
			p.logger.Error("Outbox batch failed", "error", err)
			return
		}
		if n == 0 || n < p.batchSize {
			return
		}
	}
}

// ProcessPending dispatches one batch and reports how many messages it fetched
func (p *Poller) ProcessPending(ctx context.Context) (int, error) {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}
	p.logger.Debug("Fetched pending outbox messages", "count", len(messages))

	failed := 0
	for _, msg := range messages {
		if err := p.dispatcher.Dispatch(ctx, msg); err != nil {
			failed++
			p.recordFailure(ctx, msg, err)
		}
	}
	if failed == len(messages) {
		// Nothing went through; stop draining and let the next tick retry
		return 0, fmt.Errorf("all %d outbox messages in batch failed", failed)
	}
	return len(messages), nil
}

func (p *Poller) recordFailure(ctx context.Context, msg *outbox.Message, cause error) {
	logger := p.logger.With("outbox_id", msg.ID, "reference", msg.Reference)

	attempts, status, err := p.outboxRepo.RecordFailure(ctx, msg.ID, p.maxAttempts)
	if err != nil {
		logger.Error("Failed to record outbox dispatch failure", "dispatch_error", cause, "error", err)
		return
	}
	if status == shared.OutboxStatusFailedToPublish {
		logger.Warn("Giving up on outbox message", "attempts", attempts, "error", cause)
		return
	}
	logger.Warn("Outbox dispatch failed, will retry", "attempts", attempts, "error", cause)
}
