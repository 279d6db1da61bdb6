package service

import (
	"context"
	"log/slog"

	"github.com/spwallet-ledger/internal/domain/history"
)

// HistoryServiceImpl implements the HistoryService interface
type HistoryServiceImpl struct {
	historyRepo history.Repository
	logger      *slog.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(logger *slog.Logger, historyRepo history.Repository) HistoryService {
	return &HistoryServiceImpl{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// GetHistory retrieves a page of the user's history and the total count
func (s *HistoryServiceImpl) GetHistory(ctx context.Context, userID int64, filter history.Filter, page, perPage int) ([]*history.Entry, int64, error) {
	filter.Limit = perPage
	filter.Offset = pageOffset(page, perPage)

	entries, err := s.historyRepo.GetByUser(ctx, userID, filter)
	if err != nil {
		s.logger.Error("Failed to get history", "user_id", userID, "error", err)
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByUser(ctx, userID, filter)
	if err != nil {
		s.logger.Error("Failed to count history", "user_id", userID, "error", err)
		return nil, 0, err
	}
	return entries, total, nil
}
