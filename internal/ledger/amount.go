package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPlaces is the precision amounts are stored and logged with.
const amountPlaces = 2

// Limits on accepted input. Exponent notation such as "1e50000000" is short
// but would expand to millions of digits when rounded.
const (
	maxAmountLen      = 40
	maxAmountExponent = 40
)

// maxAmount fits the NUMERIC(18,2) balance column with room for a running total.
var maxAmount = decimal.New(1, 15)

// ParseAmount validates a transaction amount given as text.
// Accepted amounts are rounded to cents.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}

	// decimal rejects NaN and Inf on its own, these just give a clearer message.
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, fmt.Errorf("%w: %q is not finite", ErrInvalidAmount, s)
	}

	if len(s) > maxAmountLen {
		return decimal.Zero, fmt.Errorf("%w: amount is too long", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}

	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}

	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}

	return d.Round(amountPlaces), nil
}
