package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// SQLSTATE codes the repositories translate into domain errors
const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
	codeDeadlockDetected = "40P01"
)

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == codeUniqueViolation
}

func isLockUnavailable(err error) bool {
	code, _ := pgErrorCode(err)
	return code == codeLockNotAvailable || code == codeDeadlockDetected
}

// amountArg renders an amount as NUMERIC(18,2) text
func amountArg(d decimal.Decimal) string {
	return d.StringFixed(wallet.Scale)
}

func parseAmount(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", column, raw, err)
	}
	return d, nil
}
