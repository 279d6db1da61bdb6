package identifier

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/spwallet-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(attempts int) *Generator {
	return NewGenerator(&config.IdentifierConfig{WalletPrefix: "SP", MaxAttempts: attempts})
}

func TestGenerator_WalletNumber(t *testing.T) {
	g := newTestGenerator(3)
	pattern := regexp.MustCompile(`^SP[0-9]{8}$`)

	for i := 0; i < 100; i++ {
		n, err := g.WalletNumber()
		require.NoError(t, err)
		assert.Regexp(t, pattern, n)
	}
}

func TestGenerator_Reference(t *testing.T) {
	g := newTestGenerator(3)
	now := time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC)

	ref, err := g.Reference(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TXN20240510[0-9A-Z]{10}$`), ref)
}

func TestGenerator_ReferenceConcurrentDistinct(t *testing.T) {
	g := newTestGenerator(3)
	now := time.Now()

	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := g.Reference(now)
			assert.NoError(t, err)
			mu.Lock()
			seen[ref] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestGenerator_Unique(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until free", func(t *testing.T) {
		g := newTestGenerator(5)
		calls := 0
		n, err := g.UniqueWalletNumber(ctx, func(ctx context.Context, candidate string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Len(t, n, 10)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		g := newTestGenerator(4)
		calls := 0
		_, err := g.UniqueReference(ctx, time.Now(), func(ctx context.Context, candidate string) (bool, error) {
			calls++
			return true, nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 4 attempts")
		assert.Equal(t, 4, calls)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		g := newTestGenerator(4)
		storeErr := errors.New("connection reset")
		_, err := g.UniqueWalletNumber(ctx, func(ctx context.Context, candidate string) (bool, error) {
			return false, storeErr
		})
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		g := newTestGenerator(4)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.UniqueWalletNumber(cancelled, func(ctx context.Context, candidate string) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
