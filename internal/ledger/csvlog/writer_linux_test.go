//go:build linux

package csvlog_test

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

// limitFileSize caps the size of files the process may write until the
// returned func is called. Writes past the cap fail with EFBIG.
func limitFileSize(t *testing.T, size int64) func() {
	t.Helper()

	signal.Ignore(syscall.SIGXFSZ)

	var orig unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_FSIZE, &orig))

	capped := orig
	capped.Cur = uint64(size)
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &capped))

	restore := func() { _ = unix.Setrlimit(unix.RLIMIT_FSIZE, &orig) }
	t.Cleanup(restore)

	return restore
}

func TestWriter_RecoversAfterFailedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	w := csvlog.Open(path)
	defer w.Close()

	ctx := context.Background()

	require.NoError(t, w.Append(ctx, record("10.00", "10.00", "Initial Balance")))

	info, err := os.Stat(path)
	require.NoError(t, err)

	restore := limitFileSize(t, info.Size()+10)
	err = w.Append(ctx, record("5.00", "15.00", "Lost while the disk was full"))
	restore()

	require.Error(t, err)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), after.Size(), "partial row must be cut off")

	require.NoError(t, w.Append(ctx, record("5.00", "15.00", "Allowance")))
	require.NoError(t, w.Append(ctx, record("-2.50", "12.50", "Sweets")))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	recs, err := csvlog.Read(f)
	require.NoError(t, err)

	require.Len(t, recs, 3)
	assert.NoError(t, csvlog.Verify(recs))
	assert.Equal(t, "Allowance", recs[1].Description)
}
