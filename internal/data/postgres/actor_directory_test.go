package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suspensionRowColumns = []string{"id", "status", "reason", "expires_at"}

func TestActorDirectory_GetByID(t *testing.T) {
	ctx := context.Background()
	userQuery := regexp.QuoteMeta(`SELECT id, name, email, role, is_active FROM users WHERE id = $1`)
	suspensionQuery := regexp.QuoteMeta(`FROM user_suspensions WHERE user_id = $1 AND status = $2`)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("eligible user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(userQuery).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "is_active"}).
				AddRow(int64(1), "Ayu", "ayu@example.com", "merchant", true))
		mock.ExpectQuery(suspensionQuery).WithArgs(int64(1), "active").
			WillReturnRows(pgxmock.NewRows(suspensionRowColumns))

		dir := &ActorDirectory{querier: mock, logger: newTestLogger()}
		a, err := dir.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, actor.RoleMerchant, a.Role)
		assert.True(t, a.Eligible(now))
		assert.True(t, a.Capabilities().Has(actor.CapTransfer))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("suspended user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expires := now.Add(time.Hour)
		mock.ExpectQuery(userQuery).WithArgs(int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "is_active"}).
				AddRow(int64(2), "Budi", "budi@example.com", "user", true))
		mock.ExpectQuery(suspensionQuery).WithArgs(int64(2), "active").
			WillReturnRows(pgxmock.NewRows(suspensionRowColumns).
				AddRow(int64(10), "active", "fraud review", &expires))

		dir := &ActorDirectory{querier: mock, logger: newTestLogger()}
		a, err := dir.GetByID(ctx, 2)
		require.NoError(t, err)
		require.Len(t, a.Suspensions, 1)
		assert.False(t, a.Eligible(now))
		assert.True(t, a.Eligible(expires.Add(time.Second)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown role has no capabilities", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(userQuery).WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "is_active"}).
				AddRow(int64(3), "Citra", "citra@example.com", "auditor", true))
		mock.ExpectQuery(suspensionQuery).WithArgs(int64(3), "active").
			WillReturnRows(pgxmock.NewRows(suspensionRowColumns))

		dir := &ActorDirectory{querier: mock, logger: newTestLogger()}
		a, err := dir.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.False(t, a.Capabilities().Has(actor.CapTransfer))
		assert.False(t, a.Capabilities().Has(actor.CapReceive))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(userQuery).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

		dir := &ActorDirectory{querier: mock, logger: newTestLogger()}
		_, err = dir.GetByID(ctx, 404)
		assert.ErrorIs(t, err, actor.ErrActorNotFound{UserID: 404})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestActorDirectory_GetByEmail(t *testing.T) {
	userColumns := []string{"id", "name", "email", "role", "is_active"}
	byEmail := regexp.QuoteMeta(`FROM users WHERE LOWER(email) = LOWER($1) ORDER BY id LIMIT $2`)

	tests := []struct {
		name       string
		email      string
		setupMocks func(mock pgxmock.PgxPoolIface)
		wantID     int64
		wantErr    error
	}{
		{
			name:  "case-insensitive match",
			email: "AYU@example.com",
			setupMocks: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(byEmail).
					WithArgs("AYU@example.com", maxEmailCandidates).
					WillReturnRows(pgxmock.NewRows(userColumns).
						AddRow(int64(1), "Ayu", "ayu@example.com", "user", true))
				mock.ExpectQuery(regexp.QuoteMeta(`FROM user_suspensions`)).
					WithArgs(int64(1), "active").
					WillReturnRows(pgxmock.NewRows(suspensionRowColumns))
			},
			wantID: 1,
		},
		{
			name:  "exact match wins over a case variant",
			email: "bob@example.com",
			setupMocks: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(byEmail).
					WithArgs("bob@example.com", maxEmailCandidates).
					WillReturnRows(pgxmock.NewRows(userColumns).
						AddRow(int64(2), "Bob", "Bob@example.com", "user", true).
						AddRow(int64(3), "Bobby", "bob@example.com", "user", true))
				mock.ExpectQuery(regexp.QuoteMeta(`FROM user_suspensions`)).
					WithArgs(int64(3), "active").
					WillReturnRows(pgxmock.NewRows(suspensionRowColumns))
			},
			wantID: 3,
		},
		{
			name:  "case variants without an exact match are ambiguous",
			email: "BOB@example.com",
			setupMocks: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(byEmail).
					WithArgs("BOB@example.com", maxEmailCandidates).
					WillReturnRows(pgxmock.NewRows(userColumns).
						AddRow(int64(2), "Bob", "Bob@example.com", "user", true).
						AddRow(int64(3), "Bobby", "bob@example.com", "user", true))
			},
			wantErr: actor.ErrActorNotFound{Email: "BOB@example.com"},
		},
		{
			name:  "unknown email",
			email: "nobody@example.com",
			setupMocks: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(byEmail).
					WithArgs("nobody@example.com", maxEmailCandidates).
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			wantErr: actor.ErrActorNotFound{Email: "nobody@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setupMocks(mock)

			dir := &ActorDirectory{querier: mock, logger: newTestLogger()}
			a, err := dir.GetByEmail(context.Background(), tt.email)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, a)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, a.UserID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
