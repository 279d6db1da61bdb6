package transfer

import "errors"

// Kind is the closed set of outcomes a failed transfer reports
type Kind string

const (
	KindReceiverNotFound      Kind = "RECEIVER_NOT_FOUND"
	KindInvalidReceiver       Kind = "INVALID_RECEIVER"
	KindSenderIneligible      Kind = "SENDER_INELIGIBLE"
	KindReceiverIneligible    Kind = "RECEIVER_INELIGIBLE"
	KindReceiverWalletMissing Kind = "RECEIVER_WALLET_MISSING"
	KindInvalidAmount         Kind = "INVALID_AMOUNT"
	KindInsufficientBalance   Kind = "INSUFFICIENT_BALANCE"
	KindLockFailed            Kind = "LOCK_FAILED"
	KindForbidden             Kind = "FORBIDDEN"
	KindTransferFailed        Kind = "TRANSFER_FAILED"
)

// Sentinels for errors.Is; any *Error with the same Kind matches.
var (
	ErrReceiverNotFound      = &Error{Kind: KindReceiverNotFound, Message: "receiver not found"}
	ErrInvalidReceiver       = &Error{Kind: KindInvalidReceiver, Message: "cannot transfer to your own wallet"}
	ErrSenderIneligible      = &Error{Kind: KindSenderIneligible, Message: "sender account is inactive or suspended"}
	ErrReceiverIneligible    = &Error{Kind: KindReceiverIneligible, Message: "receiver account is inactive or suspended"}
	ErrReceiverWalletMissing = &Error{Kind: KindReceiverWalletMissing, Message: "receiver has no wallet"}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount, Message: "invalid amount"}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrLockFailed            = &Error{Kind: KindLockFailed, Message: "could not reserve funds, please try again"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "operation not permitted for this role"}
	ErrTransferFailed        = &Error{Kind: KindTransferFailed, Message: "transfer failed, please try again"}
)

// Error is the only error type the orchestrator returns to its callers
type Error struct {
	Kind    Kind
	Message string // Human-readable reason
	Err     error  // Underlying cause, never shown to users
}

// NewError builds an Error of kind with a specific message
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind only
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Wrap returns a copy of the sentinel carrying cause
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: cause}
}

// KindOf extracts the Kind of err; foreign errors report KindTransferFailed
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindTransferFailed
}

// MessageOf returns the user-facing reason for err
func MessageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return ErrTransferFailed.Message
}
