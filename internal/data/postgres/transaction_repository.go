package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/platform/persistence"
)

const transactionColumns = `id, reference, sender_id, receiver_id, type, amount::text, fee::text, total_amount::text,
		status, description, metadata, external_reference, invoice_id, idempotency_key, failure_reason,
		processed_at, created_at, updated_at`

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a pool-backed transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a new transaction row
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, reference, sender_id, receiver_id, type, amount, fee, total_amount,
			status, description, metadata, external_reference, invoice_id, idempotency_key, failure_reason,
			processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	metadata, err := marshalMetadata(txn.Metadata)
	if err != nil {
		return err
	}

	_, err = r.querier.Exec(ctx, query,
		txn.ID,
		txn.Reference,
		txn.SenderID,
		txn.ReceiverID,
		string(txn.Type),
		amountArg(txn.Amount),
		amountArg(txn.Fee),
		amountArg(txn.TotalAmount),
		string(txn.Status),
		txn.Description,
		metadata,
		txn.ExternalReference,
		txn.InvoiceID,
		txn.IdempotencyKey,
		txn.FailureReason,
		txn.ProcessedAt,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			dup := transaction.ErrDuplicateTransaction{Reference: txn.Reference}
			if _, constraint := pgErrorCode(err); strings.Contains(constraint, "idempotency_key") && txn.IdempotencyKey != nil {
				dup.IdempotencyKey = *txn.IdempotencyKey
			}
			return dup
		}
		r.logger.Error("Failed to create transaction", "reference", txn.Reference, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{Reference: id.String()}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetByReference retrieves a transaction by its public reference
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get transaction by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}
	return txn, nil
}

// GetByIdempotencyKey finds the transaction created for a client idempotency key.
// Returns nil, nil when the key is unused.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by idempotency key", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return txn, nil
}

// ExistsByReference reports whether a reference is taken
func (r *TransactionRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, reference).Scan(&exists); err != nil {
		r.logger.Error("Failed to check transaction reference", "reference", reference, "error", err)
		return false, fmt.Errorf("failed to check transaction reference: %w", err)
	}
	return exists, nil
}

// UpdateStatus writes txn's status fields, guarded by the expected previous status
func (r *TransactionRepository) UpdateStatus(ctx context.Context, txn *transaction.Transaction, from transaction.Status) error {
	query := `
		UPDATE transactions
		SET status = $2, failure_reason = $3, processed_at = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`

	result, err := r.querier.Exec(ctx, query,
		txn.ID,
		string(txn.Status),
		txn.FailureReason,
		txn.ProcessedAt,
		txn.UpdatedAt,
		string(from),
	)
	if err != nil {
		r.logger.Error("Failed to update transaction status", "reference", txn.Reference, "status", string(txn.Status), "error", err)
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrInvalidTransition{From: from, To: txn.Status}
	}
	return nil
}

// AppendLog inserts one audit row
func (r *TransactionRepository) AppendLog(ctx context.Context, log *transaction.Log) error {
	query := `
		INSERT INTO transaction_logs (id, transaction_id, previous_status, new_status, actor_id, notes, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var previous *string
	if log.PreviousStatus != nil {
		s := string(*log.PreviousStatus)
		previous = &s
	}

	_, err := r.querier.Exec(ctx, query,
		log.ID,
		log.TransactionID,
		previous,
		string(log.NewStatus),
		log.ActorID,
		log.Notes,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append transaction log", "transaction_id", log.TransactionID.String(), "error", err)
		return fmt.Errorf("failed to append transaction log: %w", err)
	}
	return nil
}

// GetLogs returns the audit trail of a transaction, oldest first
func (r *TransactionRepository) GetLogs(ctx context.Context, transactionID uuid.UUID) ([]*transaction.Log, error) {
	query := `
		SELECT id, transaction_id, previous_status, new_status, actor_id, notes, ip_address, user_agent, created_at
		FROM transaction_logs
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, transactionID)
	if err != nil {
		r.logger.Error("Failed to get transaction logs", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction logs: %w", err)
	}
	defer rows.Close()

	var logs []*transaction.Log
	for rows.Next() {
		var (
			l         transaction.Log
			previous  *string
			newStatus string
		)
		if err := rows.Scan(&l.ID, &l.TransactionID, &previous, &newStatus, &l.ActorID, &l.Notes, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			r.logger.Error("Failed to scan transaction log", "error", err)
			return nil, fmt.Errorf("failed to scan transaction log: %w", err)
		}
		if previous != nil {
			p := transaction.Status(*previous)
			l.PreviousStatus = &p
		}
		l.NewStatus = transaction.Status(newStatus)
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transaction logs", "error", err)
		return nil, fmt.Errorf("error iterating over transaction logs: %w", err)
	}
	return logs, nil
}

// List returns one page of transactions matching filter, newest first, plus the total match count
func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error) {
	where, args := buildTransactionFilter(filter)

	countQuery := `SELECT COUNT(*) FROM transactions` + where
	var total int64
	if err := r.querier.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	pageArgs := append(append([]interface{}{}, args...), limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)

	rows, err := r.querier.Query(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, 0, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, total, nil
}

func buildTransactionFilter(filter transaction.Filter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(sender_id = $%d OR receiver_id = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}
	return b, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		txn                      transaction.Transaction
		txnType, status          string
		amount, fee, totalAmount string
		metadata                 []byte
	)
	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.SenderID,
		&txn.ReceiverID,
		&txnType,
		&amount,
		&fee,
		&totalAmount,
		&status,
		&txn.Description,
		&metadata,
		&txn.ExternalReference,
		&txn.InvoiceID,
		&txn.IdempotencyKey,
		&txn.FailureReason,
		&txn.ProcessedAt,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = transaction.Type(txnType)
	txn.Status = transaction.Status(status)
	if txn.Amount, err = parseAmount("amount", amount); err != nil {
		return nil, err
	}
	if txn.Fee, err = parseAmount("fee", fee); err != nil {
		return nil, err
	}
	if txn.TotalAmount, err = parseAmount("total_amount", totalAmount); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &txn.Metadata); err != nil {
			return nil, fmt.Errorf("invalid transaction metadata: %w", err)
		}
	}
	return &txn, nil
}
