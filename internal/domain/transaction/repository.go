package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows ledger queries. Zero values mean "any".
type Filter struct {
	UserID *int64 // Matches sender OR receiver
	Status Status
	Type   Type
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Repository manages transaction and audit-log persistence
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// UpdateStatus persists txn's status only if the stored status still equals from
	UpdateStatus(ctx context.Context, txn *Transaction, from Status) error

	AppendLog(ctx context.Context, log *Log) error
	GetLogs(ctx context.Context, transactionID uuid.UUID) ([]*Log, error)

	List(ctx context.Context, filter Filter) ([]*Transaction, int64, error)
}

// ErrTransactionNotFound indicates a missing transaction. An empty target matches any.
type ErrTransactionNotFound struct {
	Reference string
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.Reference == "" || t.Reference == e.Reference
}

// ErrDuplicateTransaction indicates a reused reference or idempotency key.
// IdempotencyKey is set when the key, not the reference, collided.
type ErrDuplicateTransaction struct {
	Reference      string
	IdempotencyKey string
}

func (e ErrDuplicateTransaction) Error() string {
	if e.IdempotencyKey != "" {
		return "duplicate transaction idempotency key: " + e.IdempotencyKey
	}
	return "duplicate transaction: " + e.Reference
}

// Is matches any ErrDuplicateTransaction
func (e ErrDuplicateTransaction) Is(target error) bool {
	_, ok := target.(ErrDuplicateTransaction)
	return ok
}

// ErrInvalidTransition is returned for a backwards or unknown status move,
// and by UpdateStatus when the stored status no longer equals From
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid transaction status transition: " + string(e.From) + " -> " + string(e.To)
}

// Is matches any ErrInvalidTransition
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}
