package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DescriptionInitial = "Initial Balance"
	DescriptionCredit  = "Credit"
	DescriptionDebit   = "Debit"
)

// Record is one posted transaction. Records are never modified once applied.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// defaultDescription derives the label used when a transaction has none.
func defaultDescription(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return DescriptionDebit
	}

	return DescriptionCredit
}

func seedRecord(initial decimal.Decimal, at time.Time) Record {
	return Record{
		ID:           uuid.New(),
		Timestamp:    at,
		Amount:       initial,
		Description:  DescriptionInitial,
		BalanceAfter: initial,
	}
}
