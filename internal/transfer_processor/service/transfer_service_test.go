package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/data/memory"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/transfer_processor/components"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	store    *memory.Store
	service  *service.TransferServiceImpl
	wallets  *service.WalletServiceImpl
	creditFn func() error // Injected failure for AddBalance inside sessions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, store: memory.NewStore(2 * time.Second)}

	cfg := &config.Config{
		Transfer: config.TransferConfig{
			MinAmount:      decimal.NewFromInt(1000),
			MaxAmount:      decimal.NewFromInt(10_000_000),
			TopUpMaxAmount: decimal.NewFromInt(100_000_000),
			LockTimeout:    2 * time.Second,
		},
		Identifier: config.IdentifierConfig{WalletPrefix: "SP", MaxAttempts: 10},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h.service, h.wallets = components.CreateTransferService(components.Stores{
		UnitOfWork:   &faultyUnitOfWork{h: h},
		Wallets:      h.store.Wallets(),
		Transactions: h.store.Transactions(),
		Directory:    h.store.Actors(),
	}, cfg, logger)
	return h
}

// user registers an eligible actor and, when balance >= 0, a wallet holding balance
func (h *harness) user(id int64, name string, role actor.Role, balance int64) *wallet.Wallet {
	h.t.Helper()
	h.store.PutActor(&actor.Actor{UserID: id, Name: name, Email: name + "@example.com", Role: role, IsActive: true})
	if balance < 0 {
		return nil
	}
	w, err := h.wallets.GetOrCreate(context.Background(), id, testNow)
	require.NoError(h.t, err)
	if balance > 0 {
		require.NoError(h.t, h.store.Wallets().AddBalance(context.Background(), w.ID, decimal.NewFromInt(balance)))
	}
	return w
}

func (h *harness) balance(w *wallet.Wallet) (decimal.Decimal, decimal.Decimal) {
	h.t.Helper()
	fresh, err := h.store.Wallets().GetByID(context.Background(), w.ID)
	require.NoError(h.t, err)
	return fresh.Balance, fresh.LockedBalance
}

func (h *harness) transactions() []*transaction.Transaction {
	h.t.Helper()
	list, _, err := h.store.Transactions().List(context.Background(), transaction.Filter{Limit: 1000})
	require.NoError(h.t, err)
	return list
}

func transferCmd(senderID int64, receiver, amount string) transfer.Command {
	return transfer.Command{
		SenderID:           senderID,
		ReceiverIdentifier: receiver,
		Amount:             amount,
		Description:        "dinner",
		Capabilities:       actor.CapabilitiesOf(actor.RoleUser),
		Now:                testNow,
	}
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got)
}

func TestExecuteTransfer_Completes(t *testing.T) {
	h := newHarness(t)
	sender := h.user(1, "ayu", actor.RoleUser, 50000)
	receiver := h.user(2, "bob", actor.RoleUser, 5000)

	result, err := h.service.ExecuteTransfer(context.Background(), transferCmd(1, receiver.WalletNumber, "10000"))
	require.NoError(t, err)

	txn := result.Transaction
	assert.Equal(t, transaction.StatusCompleted, txn.Status)
	assert.Equal(t, transaction.TypeInternalTransfer, txn.Type)
	assert.True(t, txn.Fee.IsZero())
	assertAmount(t, 10000, txn.TotalAmount)
	assert.Equal(t, sender.WalletNumber, txn.Metadata[transaction.MetaSenderWallet])
	assert.Equal(t, "dinner", txn.Metadata[transaction.MetaDescription])
	assert.Equal(t, "ayu", result.Sender.Name)
	assert.Equal(t, receiver.WalletNumber, result.Receiver.WalletNumber)

	senderBalance, senderLocked := h.balance(sender)
	receiverBalance, _ := h.balance(receiver)
	assertAmount(t, 40000, senderBalance)
	assert.True(t, senderLocked.IsZero())
	assertAmount(t, 15000, receiverBalance)

	logs, err := h.store.Transactions().GetLogs(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, transaction.StatusCompleted, logs[0].NewStatus)

	pending, err := h.store.Outbox().GetPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestExecuteTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness) transfer.Command
		wantKind transfer.Kind
	}{
		{
			name: "insufficient balance",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 5000)
				r := h.user(2, "bob", actor.RoleUser, 0)
				return transferCmd(1, r.WalletNumber, "10000")
			},
			wantKind: transfer.KindInsufficientBalance,
		},
		{
			name: "sender without wallet",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, -1)
				r := h.user(2, "bob", actor.RoleUser, 0)
				return transferCmd(1, r.WalletNumber, "1000")
			},
			wantKind: transfer.KindInsufficientBalance,
		},
		{
			name: "self transfer",
			setup: func(h *harness) transfer.Command {
				s := h.user(1, "ayu", actor.RoleUser, 50000)
				return transferCmd(1, s.WalletNumber, "1000")
			},
			wantKind: transfer.KindInvalidReceiver,
		},
		{
			name: "self transfer by email",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				return transferCmd(1, "AYU@example.com", "1000")
			},
			wantKind: transfer.KindInvalidReceiver,
		},
		{
			name: "suspended sender",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				h.store.PutActor(&actor.Actor{
					UserID: 1, Name: "ayu", Role: actor.RoleUser, IsActive: true,
					Suspensions: []actor.Suspension{{ID: 1, Status: actor.SuspensionActive}},
				})
				r := h.user(2, "bob", actor.RoleUser, 0)
				return transferCmd(1, r.WalletNumber, "1000")
			},
			wantKind: transfer.KindSenderIneligible,
		},
		{
			name: "inactive receiver",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				r := h.user(2, "bob", actor.RoleUser, 0)
				h.store.PutActor(&actor.Actor{UserID: 2, Name: "bob", Role: actor.RoleUser, IsActive: false})
				return transferCmd(1, r.WalletNumber, "1000")
			},
			wantKind: transfer.KindReceiverIneligible,
		},
		{
			name: "receiver without wallet",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				h.user(2, "bob", actor.RoleUser, -1)
				return transferCmd(1, "bob@example.com", "1000")
			},
			wantKind: transfer.KindReceiverWalletMissing,
		},
		{
			name: "unknown receiver",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				return transferCmd(1, "SP12345678", "1000")
			},
			wantKind: transfer.KindReceiverNotFound,
		},
		{
			name: "malformed qr payload",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				return transferCmd(1, base64.StdEncoding.EncodeToString([]byte("{not json")), "1000")
			},
			wantKind: transfer.KindReceiverNotFound,
		},
		{
			name: "amount below minimum",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				r := h.user(2, "bob", actor.RoleUser, 0)
				return transferCmd(1, r.WalletNumber, "999")
			},
			wantKind: transfer.KindInvalidAmount,
		},
		{
			name: "non-numeric amount",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleUser, 50000)
				r := h.user(2, "bob", actor.RoleUser, 0)
				return transferCmd(1, r.WalletNumber, "lots")
			},
			wantKind: transfer.KindInvalidAmount,
		},
		{
			name: "role without transfer capability",
			setup: func(h *harness) transfer.Command {
				h.user(1, "ayu", actor.RoleSupport, 50000)
				r := h.user(2, "bob", actor.RoleUser, 0)
				cmd := transferCmd(1, r.WalletNumber, "1000")
				cmd.Capabilities = actor.CapabilitiesOf(actor.RoleSupport)
				return cmd
			},
			wantKind: transfer.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cmd := tt.setup(h)
			before := map[int64]decimal.Decimal{}
			for _, id := range []int64{1, 2} {
				if w, err := h.store.Wallets().GetByUserID(context.Background(), id); err == nil {
					before[id] = w.Balance
				}
			}

			result, err := h.service.ExecuteTransfer(context.Background(), cmd)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantKind, transfer.KindOf(err))
			assert.NotEmpty(t, transfer.MessageOf(err))

			assert.Empty(t, h.transactions(), "a rejected transfer leaves no transaction")
			for id, balance := range before {
				w, err := h.store.Wallets().GetByUserID(context.Background(), id)
				require.NoError(t, err)
				assert.True(t, balance.Equal(w.Balance))
				assert.True(t, w.LockedBalance.IsZero())
			}
		})
	}
}

func TestExecuteTransfer_QRPayment(t *testing.T) {
	h := newHarness(t)
	h.user(1, "ayu", actor.RoleUser, 50000)
	receiver := h.user(2, "bob", actor.RoleMerchant, 0)

	qr := base64.StdEncoding.EncodeToString([]byte(
		`{"type":"wallet","wallet_number":"` + receiver.WalletNumber + `","user_id":2,"user_name":"bob"}`))
	result, err := h.service.ExecuteTransfer(context.Background(), transferCmd(1, qr, "2500.50"))
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeQRPayment, result.Transaction.Type)
	assert.Equal(t, "qr", result.Transaction.Metadata[transaction.MetaReceiverVia])

	balance, _ := h.balance(receiver)
	assert.Equal(t, "2500.50", balance.StringFixed(2))
}

func TestExecuteTransfer_FailureAfterReservation(t *testing.T) {
	h := newHarness(t)
	sender := h.user(1, "ayu", actor.RoleUser, 50000)
	receiver := h.user(2, "bob", actor.RoleUser, 5000)
	h.creditFn = func() error { return errors.New("disk full") }

	result, err := h.service.ExecuteTransfer(context.Background(), transferCmd(1, receiver.WalletNumber, "10000"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, transfer.KindTransferFailed, transfer.KindOf(err))

	senderBalance, senderLocked := h.balance(sender)
	receiverBalance, _ := h.balance(receiver)
	assertAmount(t, 50000, senderBalance)
	assert.True(t, senderLocked.IsZero(), "reservation released")
	assertAmount(t, 5000, receiverBalance)

	txns := h.transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, transaction.StatusFailed, txns[0].Status)
	assert.Contains(t, txns[0].FailureReason, "disk full")

	logs, err := h.store.Transactions().GetLogs(context.Background(), txns[0].ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, transaction.StatusProcessing, *logs[0].PreviousStatus)
	assert.Equal(t, transaction.StatusFailed, logs[0].NewStatus)
}

func TestExecuteTransfer_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	sender := h.user(1, "ayu", actor.RoleUser, 50000)
	receiver := h.user(2, "bob", actor.RoleUser, 0)
	h.user(3, "cid", actor.RoleUser, 50000)

	cmd := transferCmd(1, receiver.WalletNumber, "10000")
	cmd.IdempotencyKey = "tap-1"

	first, err := h.service.ExecuteTransfer(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := h.service.ExecuteTransfer(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.Reference, second.Transaction.Reference)
	assert.Equal(t, "bob", second.Receiver.Name)

	balance, _ := h.balance(sender)
	assertAmount(t, 40000, balance)

	stored, err := h.store.Transactions().GetByIdempotencyKey(context.Background(), "1:tap-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.Transaction.Reference, stored.Reference)
}

func TestExecuteTransfer_SameKeyFromDifferentSenders(t *testing.T) {
	h := newHarness(t)
	ayu := h.user(1, "ayu", actor.RoleUser, 50000)
	receiver := h.user(2, "bob", actor.RoleUser, 0)
	cid := h.user(3, "cid", actor.RoleUser, 50000)

	first := transferCmd(1, receiver.WalletNumber, "10000")
	first.IdempotencyKey = "tap-1"
	a, err := h.service.ExecuteTransfer(context.Background(), first)
	require.NoError(t, err)

	other := transferCmd(3, receiver.WalletNumber, "10000")
	other.IdempotencyKey = "tap-1"
	b, err := h.service.ExecuteTransfer(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, b.Replayed)
	assert.NotEqual(t, a.Transaction.Reference, b.Transaction.Reference)

	for _, w := range []*wallet.Wallet{ayu, cid} {
		balance, _ := h.balance(w)
		assertAmount(t, 40000, balance)
	}
	balance, _ := h.balance(receiver)
	assertAmount(t, 20000, balance)
}

func TestExecuteTransfer_ConcurrentSpendOfWholeBalance(t *testing.T) {
	h := newHarness(t)
	sender := h.user(1, "ayu", actor.RoleUser, 10000)
	receivers := make([]*wallet.Wallet, 8)
	for i := range receivers {
		receivers[i] = h.user(int64(10+i), "user"+string(rune('a'+i)), actor.RoleUser, 0)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		kinds     = map[transfer.Kind]int{}
	)
	for _, r := range receivers {
		wg.Add(1)
		go func(r *wallet.Wallet) {
			defer wg.Done()
			_, err := h.service.ExecuteTransfer(context.Background(), transferCmd(1, r.WalletNumber, "10000"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			kinds[transfer.KindOf(err)]++
		}(r)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, len(receivers)-1, kinds[transfer.KindInsufficientBalance]+kinds[transfer.KindLockFailed])

	balance, locked := h.balance(sender)
	assert.True(t, balance.IsZero())
	assert.True(t, locked.IsZero())

	total := decimal.Zero
	for _, r := range receivers {
		b, _ := h.balance(r)
		total = total.Add(b)
	}
	assertAmount(t, 10000, total)
	assert.Len(t, h.transactions(), 1)
}

func TestExecuteTransfer_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	h := newHarness(t)
	a := h.user(1, "ayu", actor.RoleUser, 100000)
	b := h.user(2, "bob", actor.RoleUser, 100000)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.service.ExecuteTransfer(context.Background(), transferCmd(1, b.WalletNumber, "1000"))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := h.service.ExecuteTransfer(context.Background(), transferCmd(2, a.WalletNumber, "1000"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	balanceA, _ := h.balance(a)
	balanceB, _ := h.balance(b)
	assertAmount(t, 200000, balanceA.Add(balanceB))
	assertAmount(t, 100000, balanceA)

	// Every recorded transaction has a connected audit chain starting at processing
	for _, txn := range h.transactions() {
		logs, err := h.store.Transactions().GetLogs(context.Background(), txn.ID)
		require.NoError(t, err)
		require.NotEmpty(t, logs)
		prev := transaction.StatusProcessing
		for _, l := range logs {
			require.NotNil(t, l.PreviousStatus)
			assert.Equal(t, prev, *l.PreviousStatus)
			assert.True(t, transaction.CanTransition(*l.PreviousStatus, l.NewStatus))
			prev = l.NewStatus
		}
		assert.Equal(t, txn.Status, prev)
	}
}

func TestValidateReceiver(t *testing.T) {
	h := newHarness(t)
	sender := h.user(1, "ayu", actor.RoleUser, 0)
	receiver := h.user(2, "bob", actor.RoleUser, 0)
	h.user(3, "cid", actor.RoleUser, -1)

	party, err := h.service.ValidateReceiver(context.Background(), "bob@example.com", 1)
	require.NoError(t, err)
	assert.Equal(t, &transfer.Party{UserID: 2, Name: "bob", WalletNumber: receiver.WalletNumber}, party)

	_, err = h.service.ValidateReceiver(context.Background(), sender.WalletNumber, 1)
	assert.ErrorIs(t, err, transfer.ErrInvalidReceiver)

	_, err = h.service.ValidateReceiver(context.Background(), "cid@example.com", 1)
	assert.ErrorIs(t, err, transfer.ErrReceiverWalletMissing)

	_, err = h.service.ValidateReceiver(context.Background(), "nobody@example.com", 1)
	assert.ErrorIs(t, err, transfer.ErrReceiverNotFound)
}

func TestTopUp(t *testing.T) {
	h := newHarness(t)
	h.user(99, "root", actor.RoleAdmin, -1)
	h.user(2, "bob", actor.RoleUser, -1)
	adminID := int64(99)

	cmd := transfer.TopUpCommand{
		UserID:       2,
		Amount:       "50000000",
		Description:  "opening float",
		Capabilities: actor.CapabilitiesOf(actor.RoleAdmin),
		Origin:       transaction.Origin{ActorID: &adminID},
		Now:          testNow,
	}

	result, err := h.service.TopUp(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeTopUp, result.Transaction.Type)
	assert.Equal(t, transaction.StatusCompleted, result.Transaction.Status)
	assert.Nil(t, result.Transaction.SenderID)
	assert.Nil(t, result.Sender)

	w, err := h.store.Wallets().GetByUserID(context.Background(), 2)
	require.NoError(t, err)
	assertAmount(t, 50_000_000, w.Balance)

	logs, err := h.store.Transactions().GetLogs(context.Background(), result.Transaction.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, &adminID, logs[0].ActorID)

	userCmd := cmd
	userCmd.Capabilities = actor.CapabilitiesOf(actor.RoleUser)
	_, err = h.service.TopUp(context.Background(), userCmd)
	assert.ErrorIs(t, err, transfer.ErrForbidden)

	tooMuch := cmd
	tooMuch.Amount = "100000001"
	_, err = h.service.TopUp(context.Background(), tooMuch)
	assert.ErrorIs(t, err, transfer.ErrInvalidAmount)

	unknown := cmd
	unknown.UserID = 404
	_, err = h.service.TopUp(context.Background(), unknown)
	assert.ErrorIs(t, err, transfer.ErrReceiverNotFound)
}

func TestTopUp_IdempotencyKeyScopedToAdmin(t *testing.T) {
	h := newHarness(t)
	h.user(99, "root", actor.RoleAdmin, -1)
	h.user(2, "bob", actor.RoleUser, -1)
	h.user(3, "cid", actor.RoleUser, 50000)
	receiver := h.user(4, "dee", actor.RoleUser, 0)
	adminID := int64(99)

	cmd := transfer.TopUpCommand{
		UserID:         2,
		Amount:         "1000",
		Capabilities:   actor.CapabilitiesOf(actor.RoleAdmin),
		Origin:         transaction.Origin{ActorID: &adminID},
		IdempotencyKey: "tap-1",
		Now:            testNow,
	}
	first, err := h.service.TopUp(context.Background(), cmd)
	require.NoError(t, err)

	again, err := h.service.TopUp(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.Reference, again.Transaction.Reference)

	// a user picking the same key is not blocked by the admin's top-up
	userCmd := transferCmd(3, receiver.WalletNumber, "1000")
	userCmd.IdempotencyKey = "tap-1"
	sent, err := h.service.ExecuteTransfer(context.Background(), userCmd)
	require.NoError(t, err)
	assert.False(t, sent.Replayed)

	stored, err := h.store.Transactions().GetByIdempotencyKey(context.Background(), "99:tap-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.Transaction.Reference, stored.Reference)
}

func TestWalletService_GetOrCreateIsIdempotent(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	numbers := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := h.wallets.GetOrCreate(context.Background(), 7, testNow)
			if assert.NoError(t, err) {
				numbers <- w.WalletNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for n := range numbers {
		assert.Regexp(t, `^SP[0-9]{8}$`, n)
		seen[n] = true
	}
	assert.Len(t, seen, 1, "one wallet per user")
}

// faultyUnitOfWork hands out memory sessions whose AddBalance can be made to fail
type faultyUnitOfWork struct {
	h *harness
}

func (u *faultyUnitOfWork) Begin(ctx context.Context) (transfer.Session, error) {
	sess, err := u.h.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultySession{Session: sess, h: u.h}, nil
}

type faultySession struct {
	transfer.Session
	h *harness
}

func (s *faultySession) Wallets() wallet.Repository {
	return &faultyWallets{Repository: s.Session.Wallets(), h: s.h}
}

type faultyWallets struct {
	wallet.Repository
	h *harness
}

func (w *faultyWallets) AddBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if w.h.creditFn != nil {
		if err := w.h.creditFn(); err != nil {
			return err
		}
	}
	return w.Repository.AddBalance(ctx, id, amount)
}
