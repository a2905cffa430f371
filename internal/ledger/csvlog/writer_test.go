package csvlog_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

var at = time.Date(2024, 1, 15, 10, 0, 0, 123456000, time.UTC)

func record(amount, balance, desc string) ledger.Record {
	return ledger.Record{
		ID:           uuid.New(),
		Timestamp:    at,
		Amount:       decimal.RequireFromString(amount),
		Description:  desc,
		BalanceAfter: decimal.RequireFromString(balance),
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "pocket_money_alice.csv"), csvlog.PathFor("logs", "alice"))
}

func TestWriter_Append(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pocket_money_alice.csv")

	w := csvlog.Open(path)
	assert.Equal(t, path, w.Path())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file must not exist before the first append")

	require.NoError(t, w.Append(ctx, record("10", "10", ledger.DescriptionInitial)))
	require.NoError(t, w.Append(ctx, record("-3.5", "6.5", `Comic "deluxe", used`)))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,amount,description,balance_after", lines[0])
	assert.Equal(t, "2024-01-15T10:00:00.123456Z,10.00,Initial Balance,10.00", lines[1])
	assert.Equal(t, `2024-01-15T10:00:00.123456Z,-3.50,"Comic ""deluxe"", used",6.50`, lines[2])
}

func TestWriter_HeaderWrittenOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "log.csv")

	for i := range 3 {
		w := csvlog.Open(path)
		require.NoError(t, w.Append(ctx, record(strconv.Itoa(i), strconv.Itoa(i), "row")))
		require.NoError(t, w.Close())
	}

	lines := readLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, 1, strings.Count(strings.Join(lines, "\n"), "timestamp,amount"))
}

func TestWriter_CloseWithoutAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")

	w := csvlog.Open(path)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, w.Append(context.Background(), record("1", "1", "late")), csvlog.ErrClosed)
}

func TestWriter_ConcurrentAppendsKeepEveryRow(t *testing.T) {
	const rows = 40

	path := filepath.Join(t.TempDir(), "log.csv")
	w := csvlog.Open(path, csvlog.WithFileMode(0o600))

	var wg sync.WaitGroup

	for i := range rows {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, w.Append(context.Background(), record("1", strconv.Itoa(i), "row")))
		}()
	}

	wg.Wait()
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Len(t, readLines(t, path), rows+1)
}

func TestWriter_ExpiredContextDropsRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	w := csvlog.Open(path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Append(ctx, record("1", "1", "row"))
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriter_ErrorMatchesFileContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	w := csvlog.Open(path)

	balance := decimal.Zero

	var written []ledger.Record

	for i := range 200 {
		rec := record("1", balance.Add(decimal.NewFromInt(1)).String(), "row "+strconv.Itoa(i))

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%3)*time.Microsecond)
		err := w.Append(ctx, rec)
		cancel()

		if err != nil {
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			continue
		}

		balance = rec.BalanceAfter
		written = append(written, rec)
	}

	require.NoError(t, w.Close())

	if len(written) == 0 {
		_, err := os.Stat(path)
		assert.ErrorIs(t, err, os.ErrNotExist)
		return
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := csvlog.Read(f)
	require.NoError(t, err)

	require.Len(t, got, len(written))
	assert.NoError(t, csvlog.Verify(got))

	for i := range written {
		assert.Equal(t, written[i].Description, got[i].Description)
	}
}
