package components

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spwallet-ledger/internal/domain/actor"
	"github.com/spwallet-ledger/internal/domain/shared"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

var walletNumberPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{8}$`)

const qrTypeWallet = "wallet"

// qrPayload is the JSON document a wallet QR code encodes in base64
type qrPayload struct {
	Type         string `json:"type"`
	WalletNumber string `json:"wallet_number"`
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
}

type ReceiverResolverImpl struct {
	wallets   wallet.Repository
	directory actor.Directory
	logger    *slog.Logger
}

func NewReceiverResolver(wallets wallet.Repository, directory actor.Directory, logger *slog.Logger) service.ReceiverResolver {
	return &ReceiverResolverImpl{
		wallets:   wallets,
		directory: directory,
		logger:    logger,
	}
}

// Resolve accepts an email, a wallet number or a base64 QR payload. Anything that
// does not lead to exactly one user is transfer.ErrReceiverNotFound.
func (r *ReceiverResolverImpl) Resolve(ctx context.Context, identifier string) (*service.Receiver, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return nil, transfer.ErrReceiverNotFound
	case strings.Contains(identifier, "@"):
		return r.byEmail(ctx, identifier)
	case walletNumberPattern.MatchString(strings.ToUpper(identifier)):
		return r.byWalletNumber(ctx, strings.ToUpper(identifier), 0, shared.ReceiverViaWalletNumber)
	}

	payload, ok := decodeQR(identifier)
	if !ok {
		r.logger.Debug("Receiver identifier is neither email, wallet number nor QR payload")
		return nil, transfer.ErrReceiverNotFound
	}
	return r.byWalletNumber(ctx, payload.WalletNumber, payload.UserID, shared.ReceiverViaQR)
}

func (r *ReceiverResolverImpl) byEmail(ctx context.Context, email string) (*service.Receiver, error) {
	a, err := r.directory.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, actor.ErrActorNotFound{}) {
			return nil, transfer.ErrReceiverNotFound.Wrap(err)
		}
		return nil, fmt.Errorf("failed to look up receiver by email: %w", err)
	}

	receiver := &service.Receiver{UserID: a.UserID, Name: a.Name, Via: shared.ReceiverViaEmail}
	w, err := r.wallets.GetByUserID(ctx, a.UserID)
	switch {
	case err == nil:
		receiver.Wallet = w
	case errors.Is(err, wallet.ErrWalletNotFound{}):
	default:
		return nil, fmt.Errorf("failed to load receiver wallet: %w", err)
	}
	return receiver, nil
}

// byWalletNumber resolves the wallet's owner. expectedOwner, when set, must match it.
func (r *ReceiverResolverImpl) byWalletNumber(ctx context.Context, number string, expectedOwner int64, via shared.ReceiverVia) (*service.Receiver, error) {
	w, err := r.wallets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			return nil, transfer.ErrReceiverNotFound.Wrap(err)
		}
		return nil, fmt.Errorf("failed to look up receiver wallet: %w", err)
	}

	if expectedOwner != 0 && expectedOwner != w.UserID {
		r.logger.Warn("QR payload names a wallet owned by another user",
			"wallet_number", number,
			"payload_user_id", expectedOwner,
			"owner_id", w.UserID,
		)
		return nil, transfer.ErrReceiverNotFound
	}

	a, err := r.directory.GetByID(ctx, w.UserID)
	if err != nil {
		if errors.Is(err, actor.ErrActorNotFound{}) {
			return nil, transfer.ErrReceiverNotFound.Wrap(err)
		}
		return nil, fmt.Errorf("failed to load receiver: %w", err)
	}

	return &service.Receiver{UserID: a.UserID, Name: a.Name, Wallet: w, Via: via}, nil
}

// decodeQR accepts standard or URL-safe base64, padded or not
func decodeQR(raw string) (*qrPayload, bool) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(raw)
		if err != nil {
			continue
		}
		var payload qrPayload
		if err := json.Unmarshal(decoded, &payload); err != nil {
			return nil, false
		}
		if payload.Type != qrTypeWallet || !walletNumberPattern.MatchString(payload.WalletNumber) {
			return nil, false
		}
		return &payload, true
	}
	return nil, false
}
