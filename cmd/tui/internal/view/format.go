package view

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const apiTimeout = 10 * time.Second

// FormatMoney renders an amount the way the statement summary does: two
// decimals followed by the currency symbol.
func FormatMoney(d decimal.Decimal, symbol string) string {
	return d.StringFixed(2) + " " + symbol
}

// FormatSigned is FormatMoney with an explicit sign on credits.
func FormatSigned(d decimal.Decimal, symbol string) string {
	if d.IsPositive() {
		return "+" + FormatMoney(d, symbol)
	}

	return FormatMoney(d, symbol)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}

// APICtx returns a context with a standard timeout for API calls.
func APICtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), apiTimeout)
}
