package transfer

import (
	"time"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/transaction"
)

// Command is one executeTransfer call. Now and Origin.ActorID are explicit so that
// eligibility and timestamps never depend on ambient state.
type Command struct {
	SenderID           int64
	ReceiverIdentifier string // Wallet number, email or base64 QR payload
	Amount             string // Raw decimal text as entered
	Description        string
	IdempotencyKey     string
	Capabilities       actor.Capabilities
	Origin             transaction.Origin
	Now                time.Time
}

// TopUpCommand credits a user's wallet on behalf of an administrator
type TopUpCommand struct {
	UserID         int64
	Amount         string
	Description    string
	IdempotencyKey string
	Capabilities   actor.Capabilities // Of the acting administrator
	Origin         transaction.Origin
	Now            time.Time
}

// Party is one side of a transfer, expanded for display
type Party struct {
	UserID       int64  `json:"id"`
	Name         string `json:"name"`
	WalletNumber string `json:"wallet_number"`
}

// Result is a completed transfer with both parties attached
type Result struct {
	Transaction *transaction.Transaction `json:"transaction"`
	Sender      *Party                   `json:"sender,omitempty"`
	Receiver    *Party                   `json:"receiver,omitempty"`
	Replayed    bool                     `json:"-"` // Idempotency key matched an earlier transaction
}
