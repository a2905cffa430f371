// Package csvlog implements the durable, append-only transaction log of an
// account: one CSV file per account, one row per applied transaction.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

const (
	ColTimestamp    = "timestamp"
	ColAmount       = "amount"
	ColDescription  = "description"
	ColBalanceAfter = "balance_after"

	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
	places          = 2
)

// Header is the first row of every log file.
var Header = []string{ColTimestamp, ColAmount, ColDescription, ColBalanceAfter}

// PathFor returns the log file of an account inside dir.
func PathFor(dir, accountID string) string {
	return filepath.Join(dir, fmt.Sprintf("pocket_money_%s.csv", accountID))
}

func formatRow(rec ledger.Record) []string {
	return []string{
		rec.Timestamp.UTC().Format(timestampLayout),
		rec.Amount.StringFixed(places),
		rec.Description,
		rec.BalanceAfter.StringFixed(places),
	}
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Encode writes a standalone log, header included, holding recs.
func Encode(w io.Writer, recs []ledger.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, rec := range recs {
		if err := cw.Write(formatRow(rec)); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}
