package ledger_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

// restoreOverLog seeds a log file and restores a ledger on top of it, so the
// ledger's own options (a tiny log timeout) never touch the seed row.
func restoreOverLog(t *testing.T, policy ledger.Policy, timeout time.Duration) (*ledger.Ledger, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pocket_money_alice.csv")
	w := csvlog.Open(path)

	seed := ledger.Record{
		ID:           uuid.New(),
		Timestamp:    fixedNow,
		Amount:       decimal.NewFromInt(10),
		Description:  ledger.DescriptionInitial,
		BalanceAfter: decimal.NewFromInt(10),
	}
	require.NoError(t, w.Append(context.Background(), seed))

	cfg := aliceConfig(5)
	cfg.CSVLogging = true

	l, err := ledger.Restore(
		&ledger.State{Account: cfg, Balance: seed.BalanceAfter, History: []ledger.Record{seed}, LastUpdate: fixedNow},
		ledger.WithAppender(w),
		ledger.WithClock(fixedClock),
		ledger.WithPolicy(policy),
		ledger.WithLogTimeout(timeout),
	)
	require.NoError(t, err)

	return l, path
}

func readLog(t *testing.T, path string) []ledger.Record {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csvlog.Read(f)
	require.NoError(t, err)

	return recs
}

func TestLedger_LogTimeout_RollbackKeepsLogAndBalanceInStep(t *testing.T) {
	l, path := restoreOverLog(t, ledger.PolicyRollback, time.Microsecond)

	var accepted []ledger.Record

	for range 200 {
		rec, err := l.Apply(context.Background(), ledger.Params{Amount: "1"})
		if err != nil {
			require.ErrorIs(t, err, ledger.ErrPersistence)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Nil(t, rec)

			continue
		}

		accepted = append(accepted, *rec)
	}

	balance := l.Balance()
	require.NoError(t, l.Close())

	recs := readLog(t, path)

	require.Len(t, recs, len(accepted)+1)
	require.NoError(t, csvlog.Verify(recs))
	assertMoney(t, recs[len(recs)-1].BalanceAfter.StringFixed(2), balance)

	for i, rec := range accepted {
		assertMoney(t, rec.BalanceAfter.StringFixed(2), recs[i+1].BalanceAfter)
	}
}

func TestLedger_LogTimeout_ReportLogsOnlyConfirmedRows(t *testing.T) {
	l, path := restoreOverLog(t, ledger.PolicyReport, time.Microsecond)

	confirmed := 0

	for range 200 {
		rec, err := l.Apply(context.Background(), ledger.Params{Amount: "1"})
		require.NotNil(t, rec)

		var perr *ledger.PersistenceError
		if errors.As(err, &perr) {
			assert.False(t, perr.RolledBack)
			continue
		}

		require.NoError(t, err)
		confirmed++
	}

	assertMoney(t, "210.00", l.Balance())
	require.NoError(t, l.Close())

	assert.Len(t, readLog(t, path), confirmed+1)
}
