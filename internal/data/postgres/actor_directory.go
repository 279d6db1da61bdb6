package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/platform/persistence"
)

const maxEmailCandidates = 10

// ActorDirectory reads users and their in-force suspension candidates from the
// tables owned by user management. It never writes.
type ActorDirectory struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewActorDirectory creates a pool-backed directory
func NewActorDirectory(logger *slog.Logger, db *persistence.PostgresDB) actor.Directory {
	return &ActorDirectory{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByID loads a user with their active suspensions
func (d *ActorDirectory) GetByID(ctx context.Context, userID int64) (*actor.Actor, error) {
	query := `SELECT id, name, email, role, is_active FROM users WHERE id = $1`

	a, err := d.scanActor(d.querier.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, actor.ErrActorNotFound{UserID: userID}
		}
		d.logger.Error("Failed to get user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return d.withSuspensions(ctx, a)
}

// GetByEmail loads a user by email, case-insensitively. Rows that differ only in case
// predate the lower(email) index; they resolve through actor.MatchEmail.
func (d *ActorDirectory) GetByEmail(ctx context.Context, email string) (*actor.Actor, error) {
	query := `SELECT id, name, email, role, is_active FROM users WHERE LOWER(email) = LOWER($1) ORDER BY id LIMIT $2`

	rows, err := d.querier.Query(ctx, query, email, maxEmailCandidates)
	if err != nil {
		d.logger.Error("Failed to get user by email", "error", err)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	defer rows.Close()

	var candidates []*actor.Actor
	for rows.Next() {
		a, err := d.scanActor(rows)
		if err != nil {
			d.logger.Error("Failed to scan user", "error", err)
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		candidates = append(candidates, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over users: %w", err)
	}
	rows.Close()

	a := actor.MatchEmail(candidates, email)
	if a == nil {
		if len(candidates) > 1 {
			d.logger.Warn("Email matches several users", "candidates", len(candidates))
		}
		return nil, actor.ErrActorNotFound{Email: email}
	}
	return d.withSuspensions(ctx, a)
}

// withSuspensions attaches suspensions with status active; expiry is judged by the caller at its own now
func (d *ActorDirectory) withSuspensions(ctx context.Context, a *actor.Actor) (*actor.Actor, error) {
	query := `
		SELECT id, status, reason, expires_at
		FROM user_suspensions
		WHERE user_id = $1 AND status = $2
	`

	rows, err := d.querier.Query(ctx, query, a.UserID, string(actor.SuspensionActive))
	if err != nil {
		d.logger.Error("Failed to get user suspensions", "user_id", a.UserID, "error", err)
		return nil, fmt.Errorf("failed to get user suspensions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s      actor.Suspension
			status string
		)
		if err := rows.Scan(&s.ID, &status, &s.Reason, &s.ExpiresAt); err != nil {
			d.logger.Error("Failed to scan user suspension", "error", err)
			return nil, fmt.Errorf("failed to scan user suspension: %w", err)
		}
		s.Status = actor.SuspensionStatus(status)
		a.Suspensions = append(a.Suspensions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over user suspensions: %w", err)
	}
	return a, nil
}

func (d *ActorDirectory) scanActor(row pgx.Row) (*actor.Actor, error) {
	var (
		a    actor.Actor
		role string
	)
	if err := row.Scan(&a.UserID, &a.Name, &a.Email, &role, &a.IsActive); err != nil {
		return nil, err
	}

	parsed, err := actor.ParseRole(role)
	if err != nil {
		// Unknown roles resolve to an empty capability set
		d.logger.Warn("User has unknown role", "user_id", a.UserID, "role", role)
		parsed = actor.Role(role)
	}
	a.Role = parsed
	return &a, nil
}
