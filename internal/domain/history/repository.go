package history

import (
	"context"

	"github.com/spwallet-ledger/internal/domain/transaction"
)

// Filter narrows a user's history. Zero values mean "any".
type Filter struct {
	Status transaction.Status
	Type   transaction.Type
	Limit  int
	Offset int
}

// Repository stores history entries keyed by (reference, user_id)
type Repository interface {
	// Upsert inserts or replaces the entry; re-delivery of the same event is harmless
	Upsert(ctx context.Context, entry *Entry) error
	GetByUser(ctx context.Context, userID int64, filter Filter) ([]*Entry, error)
	CountByUser(ctx context.Context, userID int64, filter Filter) (int64, error)
}
