package wallet

import (
	"fmt"

	"github.com/cyphera/grantpay/internal/apperrors"
	"github.com/cyphera/grantpay/internal/client/openpayments"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ToScaled converts a major-unit amount to the integer string sent on the wire:
// round(amount × 10^scale).
func ToScaled(amount decimal.Decimal, scale int) string {
	return amount.Shift(int32(scale)).Round(0).String()
}

// FromScaled converts a wire integer string back to a major-unit amount.
func FromScaled(value string, scale int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid scaled amount %q", value)
	}
	return d.Shift(-int32(scale)), nil
}

// AmountFor builds a wire amount in w's asset.
func AmountFor(w *openpayments.WalletAddress, amount decimal.Decimal) *openpayments.Amount {
	return &openpayments.Amount{
		Value:      ToScaled(amount, w.AssetScale),
		AssetCode:  w.AssetCode,
		AssetScale: w.AssetScale,
	}
}

// CheckPrecision rejects amounts finer than w's smallest unit, which ToScaled would otherwise
// round away from what the ledger records.
func CheckPrecision(op string, w *openpayments.WalletAddress, amount decimal.Decimal) error {
	if amount.Equal(amount.Round(int32(w.AssetScale))) {
		return nil
	}
	return apperrors.Validation(op, fmt.Sprintf("amount %s has more than %d decimal places for %s",
		amount.String(), w.AssetScale, w.AssetCode))
}
