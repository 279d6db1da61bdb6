// Package mongo stores the per-user transaction history read model.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/history"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// HistoryCollectionName is the name of the history collection in MongoDB
	HistoryCollectionName = "transaction_history"

	defaultPageSize = 10
)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

type historyDocument struct {
	TransactionID      string               `bson:"transaction_id"`
	Reference          string               `bson:"reference"`
	UserID             int64                `bson:"user_id"`
	Direction          string               `bson:"direction"`
	CounterpartyID     *int64               `bson:"counterparty_id,omitempty"`
	CounterpartyWallet string               `bson:"counterparty_wallet_number,omitempty"`
	Type               string               `bson:"type"`
	Status             string               `bson:"status"`
	Amount             primitive.Decimal128 `bson:"amount"`
	Fee                primitive.Decimal128 `bson:"fee"`
	Description        string               `bson:"description,omitempty"`
	FailureReason      string               `bson:"failure_reason,omitempty"`
	CreatedAt          time.Time            `bson:"created_at"`
	ProcessedAt        *time.Time           `bson:"processed_at,omitempty"`
}

// EnsureIndexes creates the (reference, user_id) key and the per-user listing index
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create history indexes", "error", err)
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

// Upsert writes the entry keyed by (reference, user_id); replaying an event rewrites the same document
func (r *HistoryRepository) Upsert(ctx context.Context, entry *history.Entry) error {
	collection := r.db.Collection(HistoryCollectionName)

	doc, err := toDocument(entry)
	if err != nil {
		return err
	}

	filter := bson.M{"reference": entry.Reference, "user_id": entry.UserID}
	update := bson.M{"$set": doc}

	if _, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		r.logger.Error("Failed to upsert history entry",
			"reference", entry.Reference,
			"user_id", entry.UserID,
			"error", err)
		return fmt.Errorf("failed to upsert history entry: %w", err)
	}
	return nil
}

// GetByUser retrieves a page of a user's entries, newest first
func (r *HistoryRepository) GetByUser(ctx context.Context, userID int64, filter history.Filter) ([]*history.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, userFilter(userID, filter), opts)
	if err != nil {
		r.logger.Error("Failed to get history entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode history entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	entries := make([]*history.Entry, 0, len(docs))
	for i := range docs {
		entry, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CountByUser counts a user's entries matching filter
func (r *HistoryRepository) CountByUser(ctx context.Context, userID int64, filter history.Filter) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	count, err := collection.CountDocuments(ctx, userFilter(userID, filter))
	if err != nil {
		r.logger.Error("Failed to count history entries", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}

func userFilter(userID int64, filter history.Filter) bson.M {
	query := bson.M{"user_id": userID}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	return query
}

func toDocument(entry *history.Entry) (*historyDocument, error) {
	amount, err := primitive.ParseDecimal128(entry.Amount.StringFixed(2))
	if err != nil {
		return nil, fmt.Errorf("invalid history amount: %w", err)
	}
	fee, err := primitive.ParseDecimal128(entry.Fee.StringFixed(2))
	if err != nil {
		return nil, fmt.Errorf("invalid history fee: %w", err)
	}

	return &historyDocument{
		TransactionID:      entry.TransactionID.String(),
		Reference:          entry.Reference,
		UserID:             entry.UserID,
		Direction:          string(entry.Direction),
		CounterpartyID:     entry.CounterpartyID,
		CounterpartyWallet: entry.CounterpartyWallet,
		Type:               string(entry.Type),
		Status:             string(entry.Status),
		Amount:             amount,
		Fee:                fee,
		Description:        entry.Description,
		FailureReason:      entry.FailureReason,
		CreatedAt:          entry.CreatedAt,
		ProcessedAt:        entry.ProcessedAt,
	}, nil
}

func fromDocument(doc *historyDocument) (*history.Entry, error) {
	txID, err := uuid.Parse(doc.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("invalid history transaction id %q: %w", doc.TransactionID, err)
	}
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("invalid history amount %q: %w", doc.Amount.String(), err)
	}
	fee, err := decimal.NewFromString(doc.Fee.String())
	if err != nil {
		return nil, fmt.Errorf("invalid history fee %q: %w", doc.Fee.String(), err)
	}

	return &history.Entry{
		TransactionID:      txID,
		Reference:          doc.Reference,
		UserID:             doc.UserID,
		Direction:          history.Direction(doc.Direction),
		CounterpartyID:     doc.CounterpartyID,
		CounterpartyWallet: doc.CounterpartyWallet,
		Type:               transaction.Type(doc.Type),
		Status:             transaction.Status(doc.Status),
		Amount:             amount,
		Fee:                fee,
		Description:        doc.Description,
		FailureReason:      doc.FailureReason,
		CreatedAt:          doc.CreatedAt,
		ProcessedAt:        doc.ProcessedAt,
	}, nil
}
