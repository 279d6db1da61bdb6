package transaction

import "fmt"

// Type enumerates transaction kinds. Only transfers, QR payments and top-ups are produced
// by this service; the rest are recorded opaquely for collaborators.
type Type string

const (
	TypeInternalTransfer        Type = "internal_transfer"
	TypeExternalTransferSend    Type = "external_transfer_send"
	TypeExternalTransferReceive Type = "external_transfer_receive"
	TypeQRPayment               Type = "qr_payment"
	TypeTopUp                   Type = "top_up"
	TypeWithdrawal              Type = "withdrawal"
	TypeCardTransaction         Type = "card_transaction"
	TypeRefund                  Type = "refund"
)

var validTypes = map[Type]struct{}{
	TypeInternalTransfer:        {},
	TypeExternalTransferSend:    {},
	TypeExternalTransferReceive: {},
	TypeQRPayment:               {},
	TypeTopUp:                   {},
	TypeWithdrawal:              {},
	TypeCardTransaction:         {},
	TypeRefund:                  {},
}

// ParseType validates a raw type string
func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if _, ok := validTypes[t]; !ok {
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
	return t, nil
}

// Status is the lifecycle state of a transaction
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the allowed forward moves; terminal states have none.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// ParseStatus validates a raw status string
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", raw)
}

// CanTransition reports whether from -> to is an allowed move
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
