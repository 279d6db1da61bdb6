package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/platform/persistence"
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
	now     func() time.Time
}

// NewOutboxRepository creates a pool-backed outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) *OutboxRepository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithTx returns a repository bound to tx, so the message commits together with the
// status transition that produced it.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
		now:     r.now,
	}
}

// Create stores a new outbox message in pending status
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	query := `
		INSERT INTO transaction_outbox (transaction_id, reference, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.TransactionID,
		message.Reference,
		[]byte(message.Payload),
		string(message.Status),
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		r.logger.Error("Failed to create outbox message", "reference", message.Reference, "error", err)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending messages in FIFO order
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `
		SELECT id, transaction_id, reference, payload, status, attempts, created_at, last_attempt_at
		FROM transaction_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, string(shared.OutboxStatusPending), limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		var (
			message outbox.Message
			payload []byte
			status  string
		)
		err := rows.Scan(
			&message.ID,
			&message.TransactionID,
			&message.Reference,
			&payload,
			&status,
			&message.Attempts,
			&message.CreatedAt,
			&message.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		message.Payload = payload
		message.Status = shared.OutboxStatus(status)
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE transaction_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, string(status), r.now(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status", "id", id, "status", string(status), "error", err)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// RecordFailure increments attempts and gives up on the message in the same statement,
// so a crash between the two cannot leave it retrying forever.
func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64, maxAttempts int) (int, shared.OutboxStatus, error) {
	query := `
		UPDATE transaction_outbox
		SET attempts = attempts + 1,
			last_attempt_at = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4
		RETURNING attempts, status
	`

	var (
		attempts int
		status   string
	)
	err := r.querier.QueryRow(ctx, query, r.now(), maxAttempts, string(shared.OutboxStatusFailedToPublish), id).
		Scan(&attempts, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", outbox.ErrMessageNotFound{ID: id}
	}
	if err != nil {
		r.logger.Error("Failed to record outbox publish failure", "id", id, "error", err)
		return 0, "", fmt.Errorf("failed to record outbox publish failure: %w", err)
	}
	return attempts, shared.OutboxStatus(status), nil
}
