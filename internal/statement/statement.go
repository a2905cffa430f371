package statement

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

// Source tells where the records of a statement were read from.
type Source string

const (
	// SourceLog is the account's durable log, the complete record history.
	SourceLog Source = "log"
	// SourceHistory is the bounded in-memory history, used when the account
	// keeps no durable log.
	SourceHistory Source = "history"
)

// Range bounds a statement. Both ends are inclusive and optional.
type Range struct {
	Start *time.Time `json:"start_date,omitempty"`
	End   *time.Time `json:"end_date,omitempty"`
}

func (r Range) contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}

	if r.End != nil && t.After(*r.End) {
		return false
	}

	return true
}

type Statement struct {
	Account ledger.AccountConfig
	Range   Range
	Source  Source
	Opening decimal.Decimal
	Closing decimal.Decimal
	Credits decimal.Decimal
	Debits  decimal.Decimal
	Records []ledger.Record
}

// Accounts is the read side of the ledger registry.
type Accounts interface {
	Snapshot(id string) (ledger.Snapshot, error)
}

type Service struct {
	accounts Accounts
	logDir   string
}

func NewService(accounts Accounts, logDir string) *Service {
	return &Service{accounts: accounts, logDir: logDir}
}

// Statement lists the records of an account that fall inside rng together
// with the balance before and after them.
func (s *Service) Statement(ctx context.Context, accountID string, rng Range) (*Statement, error) {
	snap, err := s.accounts.Snapshot(accountID)
	if err != nil {
		return nil, err
	}

	recs, src, err := s.records(ctx, snap)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		Account: snap.Account,
		Range:   rng,
		Source:  src,
	}

	var before *ledger.Record

	for i := range recs {
		rec := recs[i]

		if rng.Start != nil && rec.Timestamp.Before(*rng.Start) {
			before = &recs[i]
			continue
		}

		if !rng.contains(rec.Timestamp) {
			continue
		}

		st.Records = append(st.Records, rec)

		if rec.Amount.IsNegative() {
			st.Debits = st.Debits.Add(rec.Amount.Neg())
		} else {
			st.Credits = st.Credits.Add(rec.Amount)
		}
	}

	switch {
	case len(st.Records) > 0:
		first, last := st.Records[0], st.Records[len(st.Records)-1]
		st.Opening = first.BalanceAfter.Sub(first.Amount)
		st.Closing = last.BalanceAfter
	case before != nil:
		st.Opening = before.BalanceAfter
		st.Closing = before.BalanceAfter
	}

	return st, nil
}

func (s *Service) records(ctx context.Context, snap ledger.Snapshot) ([]ledger.Record, Source, error) {
	if !snap.Account.CSVLogging || s.logDir == "" {
		return snap.History, SourceHistory, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	path := csvlog.PathFor(s.logDir, snap.Account.ID)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap.History, SourceHistory, nil
	}

	if err != nil {
		return nil, "", fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	recs, err := csvlog.Read(f)
	if err != nil {
		return nil, "", fmt.Errorf("reading log %s: %w", path, err)
	}

	return recs, SourceLog, nil
}

// GenerateSummary renders one line per record of the statement.
func (s *Service) GenerateSummary(st *Statement) string {
	var sb strings.Builder

	symbol := st.Account.CurrencySymbol

	for _, rec := range st.Records {
		date := rec.Timestamp.Format(time.DateOnly)

		sign := "+"
		if rec.Amount.IsNegative() {
			sign = "-"
		}

		sb.WriteString(fmt.Sprintf("* %s | %s | %s%s %s | %s %s\n",
			date, rec.Description, sign, rec.Amount.Abs().StringFixed(2), symbol,
			rec.BalanceAfter.StringFixed(2), symbol))
	}

	return sb.String()
}
