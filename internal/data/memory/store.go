// Package memory provides an in-process Store implementing the wallet, ledger and
// outbox repositories, the actor directory and the transfer UnitOfWork.
//
// Sessions write to private working copies and publish them on Commit. Wallets touched
// by a session are held exclusively until it ends, so other sessions queue on them the
// way they would on a row lock.
package memory

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/outbox"
	"github.com/spwallet-ledger/internal/domain/transaction"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
)

// Store holds committed state. It is safe for concurrent use; sessions are not.
type Store struct {
	mu          sync.Mutex
	lockTimeout time.Duration
	now         func() time.Time

	wallets        map[uuid.UUID]*wallet.Wallet
	walletByUser   map[int64]uuid.UUID
	walletByNumber map[string]uuid.UUID

	transactions map[uuid.UUID]*transaction.Transaction
	txnByRef     map[string]uuid.UUID
	txnByKey     map[string]uuid.UUID
	logs         map[uuid.UUID][]*transaction.Log

	messages      []*outbox.Message
	lastMessageID int64

	actors map[int64]*actor.Actor

	rowLocks map[uuid.UUID]chan struct{}
}

// NewStore creates an empty store. lockTimeout bounds how long a session waits for a
// wallet held by another session; zero waits until the context ends.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		lockTimeout:    lockTimeout,
		now:            time.Now,
		wallets:        make(map[uuid.UUID]*wallet.Wallet),
		walletByUser:   make(map[int64]uuid.UUID),
		walletByNumber: make(map[string]uuid.UUID),
		transactions:   make(map[uuid.UUID]*transaction.Transaction),
		txnByRef:       make(map[string]uuid.UUID),
		txnByKey:       make(map[string]uuid.UUID),
		logs:           make(map[uuid.UUID][]*transaction.Log),
		actors:         make(map[int64]*actor.Actor),
		rowLocks:       make(map[uuid.UUID]chan struct{}),
	}
}

// Begin opens a session
func (st *Store) Begin(ctx context.Context) (transfer.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return st.begin(), nil
}

// Wallets returns an autocommit repository: every call runs in its own session
func (st *Store) Wallets() wallet.Repository {
	return &walletRepo{store: st}
}

// Transactions returns an autocommit ledger repository
func (st *Store) Transactions() transaction.Repository {
	return &transactionRepo{store: st}
}

// Outbox returns an autocommit outbox repository
func (st *Store) Outbox() outbox.Repository {
	return &outboxRepo{store: st}
}

// Actors returns the directory backed by PutActor
func (st *Store) Actors() actor.Directory {
	return &directory{store: st}
}

// PutActor inserts or replaces a user
func (st *Store) PutActor(a *actor.Actor) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.actors[a.UserID] = cloneActor(a)
}

func (st *Store) begin() *session {
	return &session{
		store:      st,
		held:       make(map[uuid.UUID]chan struct{}),
		work:       make(map[uuid.UUID]*wallet.Wallet),
		newWallets: make(map[uuid.UUID]bool),
		txns:       make(map[uuid.UUID]*transaction.Transaction),
		created:    make(map[uuid.UUID]bool),
		expected:   make(map[uuid.UUID]transaction.Status),
	}
}

// acquire takes the exclusive hold on a wallet, waiting at most lockTimeout
func (st *Store) acquire(ctx context.Context, id uuid.UUID) (chan struct{}, error) {
	st.mu.Lock()
	ch, ok := st.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		st.rowLocks[id] = ch
	}
	st.mu.Unlock()

	waitCtx := ctx
	if st.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, st.lockTimeout)
		defer cancel()
	}

	select {
	case ch <- struct{}{}:
		return ch, nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock wallet %s: %w", id, wallet.ErrLockUnavailable)
	}
}

type directory struct {
	store *Store
}

func (d *directory) GetByID(_ context.Context, userID int64) (*actor.Actor, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	a, ok := d.store.actors[userID]
	if !ok {
		return nil, actor.ErrActorNotFound{UserID: userID}
	}
	return cloneActor(a), nil
}

func (d *directory) GetByEmail(_ context.Context, email string) (*actor.Actor, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	var candidates []*actor.Actor
	for _, a := range d.store.actors {
		if strings.EqualFold(a.Email, email) {
			candidates = append(candidates, a)
		}
	}
	if a := actor.MatchEmail(candidates, email); a != nil {
		return cloneActor(a), nil
	}
	return nil, actor.ErrActorNotFound{Email: email}
}

func cloneActor(a *actor.Actor) *actor.Actor {
	c := *a
	c.Suspensions = append([]actor.Suspension(nil), a.Suspensions...)
	return &c
}

func cloneWallet(w *wallet.Wallet) *wallet.Wallet {
	c := *w
	return &c
}

func cloneTransaction(t *transaction.Transaction) *transaction.Transaction {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	return &c
}

func cloneLog(l *transaction.Log) *transaction.Log {
	c := *l
	return &c
}

func cloneMessage(m *outbox.Message) *outbox.Message {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	return &c
}
