package components

import (
	"context"
	"testing"
	"time"

	"github.com/spwallet-ledger/internal/data/memory"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureRecorder_RecordFailure(t *testing.T) {
	st := memory.NewStore(time.Second)
	ledger := NewLedgerRecorder(st.Transactions(), newTestGenerator(), newTestLogger())
	recorder := NewFailureRecorder(st, ledger, newTestLogger())
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	// A cancelled request still gets its failure on record
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txn, err := recorder.RecordFailure(ctx, newTransferDraft("key-1"), transaction.Origin{}, "credit failed", now)
	require.NoError(t, err)

	bg := context.Background()
	stored, err := st.Transactions().GetByReference(bg, txn.Reference)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, stored.Status)
	assert.Equal(t, "credit failed", stored.FailureReason)
	assert.Nil(t, stored.IdempotencyKey)

	logs, err := st.Transactions().GetLogs(bg, txn.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, transaction.StatusProcessing, *logs[0].PreviousStatus)
	assert.Equal(t, transaction.StatusFailed, logs[0].NewStatus)
	assert.Contains(t, logs[0].Notes, "credit failed")

	pending, err := st.Outbox().GetPending(bg, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, txn.Reference, pending[0].Reference)

	reused, err := st.Transactions().GetByIdempotencyKey(bg, "key-1")
	require.NoError(t, err)
	assert.Nil(t, reused)
}
