package components

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spwallet-ledger/internal/config"
	"github.com/spwallet-ledger/internal/domain/transfer"
	"github.com/spwallet-ledger/internal/domain/wallet"
	"github.com/spwallet-ledger/internal/transfer_processor/service"
)

// Amounts outside these bounds are rejected before any arithmetic. Rescaling a decimal
// such as 1e999999999 allocates a power of ten of that size.
const (
	maxAmountLength   = 40
	maxAmountExponent = 18
)

type AmountValidatorImpl struct {
	min      decimal.Decimal
	max      decimal.Decimal
	topUpMax decimal.Decimal
}

func NewAmountValidator(cfg *config.TransferConfig) service.AmountValidator {
	return &AmountValidatorImpl{
		min:      cfg.MinAmount,
		max:      cfg.MaxAmount,
		topUpMax: cfg.TopUpMaxAmount,
	}
}

// Validate parses raw and checks it against min and the ceiling for limit.
// Amounts carry at most two fractional digits.
func (v *AmountValidatorImpl) Validate(raw string, limit service.AmountLimit) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAmountLength {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount is too long", nil)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount must be a number", err)
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount is out of range", nil)
	}
	if !amount.IsPositive() {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount must be greater than zero", nil)
	}
	if !amount.Equal(wallet.Normalize(amount)) {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount must have at most two decimal places", nil)
	}

	ceiling := v.max
	if limit == service.LimitTopUp {
		ceiling = v.topUpMax
	}
	if amount.LessThan(v.min) {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount must be at least "+v.min.StringFixed(wallet.Scale), nil)
	}
	if amount.GreaterThan(ceiling) {
		return decimal.Zero, transfer.NewError(transfer.KindInvalidAmount, "amount must not exceed "+ceiling.StringFixed(wallet.Scale), nil)
	}
	return wallet.Normalize(amount), nil
}
