package csvlog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

// ChainError reports the first record whose balance_after does not follow
// from the previous one. Index is 0-based within the records given to Verify.
type ChainError struct {
	Index int
	Want  decimal.Decimal
	Got   decimal.Decimal
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("record %d: balance_after %s, expected %s",
		e.Index, e.Got.StringFixed(places), e.Want.StringFixed(places))
}

// Verify checks that every record's balance_after equals the previous
// balance plus its amount. The first record must be the seed, whose amount is
// the initial balance.
func Verify(recs []ledger.Record) error {
	var prev decimal.Decimal

	for i, rec := range recs {
		want := prev.Add(rec.Amount)
		if !rec.BalanceAfter.Equal(want) {
			return &ChainError{Index: i, Want: want, Got: rec.BalanceAfter}
		}

		prev = rec.BalanceAfter
	}

	return nil
}
