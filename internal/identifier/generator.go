// Package identifier generates wallet numbers and transaction references.
//
// Candidates are checked against the store before use, but the store's unique
// constraints remain the final arbiter: callers retry when an insert reports a
// duplicate that raced past the check.
package identifier

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spwallet-ledger/internal/config"
)

const (
	referencePrefix = "TXN"
	walletDigits    = 8
	suffixLen       = 10
)

// ExistsFunc reports whether candidate is already taken
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Generator produces human-readable identifiers
type Generator struct {
	walletPrefix string
	maxAttempts  int
	entropy      *ulid.LockedMonotonicReader
}

// NewGenerator creates a generator using the configured wallet prefix and retry budget
func NewGenerator(cfg *config.IdentifierConfig) *Generator {
	return &Generator{
		walletPrefix: cfg.WalletPrefix,
		maxAttempts:  cfg.MaxAttempts,
		entropy:      &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)},
	}
}

// WalletNumber returns prefix + 8 random digits, e.g. SP04718263
func (g *Generator) WalletNumber() (string, error) {
	limit := big.NewInt(100_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to read random digits: %w", err)
	}
	return fmt.Sprintf("%s%0*d", g.walletPrefix, walletDigits, n.Int64()), nil
}

// Reference returns TXN + yyyymmdd + the random tail of a ULID, e.g. TXN20240510K3J9QX2M7A
func (g *Generator) Reference(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ulid: %w", err)
	}
	s := id.String()
	return referencePrefix + now.UTC().Format("20060102") + s[len(s)-suffixLen:], nil
}

// UniqueWalletNumber retries WalletNumber until exists reports the candidate free
func (g *Generator) UniqueWalletNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, "wallet number", exists, g.WalletNumber)
}

// UniqueReference retries Reference until exists reports the candidate free
func (g *Generator) UniqueReference(ctx context.Context, now time.Time, exists ExistsFunc) (string, error) {
	return g.unique(ctx, "transaction reference", exists, func() (string, error) {
		return g.Reference(now)
	})
}

func (g *Generator) unique(ctx context.Context, what string, exists ExistsFunc, next func() (string, error)) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := next()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s uniqueness: %w", what, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique %s after %d attempts", what, g.maxAttempts)
}
