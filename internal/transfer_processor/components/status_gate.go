package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

type StatusGateImpl struct {
	directory actor.Directory
	logger    *slog.Logger
}

func NewStatusGate(directory actor.Directory, logger *slog.Logger) service.StatusGate {
	return &StatusGateImpl{
		directory: directory,
		logger:    logger,
	}
}

// Eligible returns the actor and whether it is active and not suspended at now.
// A missing user is reported as actor.ErrActorNotFound.
func (g *StatusGateImpl) Eligible(ctx context.Context, userID int64, now time.Time) (*actor.Actor, bool, error) {
	a, err := g.directory.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, actor.ErrActorNotFound{}) {
			return nil, false, err
		}
		g.logger.Error("Failed to load user for eligibility check", "user_id", userID, "error", err)
		return nil, false, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	if !a.Eligible(now) {
		g.logger.Info("User is not eligible to move funds",
			"user_id", userID,
			"is_active", a.IsActive,
			"suspended", a.IsSuspended(now),
		)
		return a, false, nil
	}
	return a, true, nil
}
