package ledger_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/store"
)

func newRegistry(t *testing.T, opts ledger.Options) *ledger.Registry {
	t.Helper()

	if opts.Clock == nil {
		opts.Clock = fixedClock
	}

	r := ledger.NewRegistry(opts)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func TestRegistry_Register(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, ledger.Options{})

	l, err := r.Register(ctx, aliceConfig(2))
	require.NoError(t, err)
	assert.Equal(t, "alice", l.ID())

	_, err = r.Register(ctx, aliceConfig(2))
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccount)

	_, err = r.Register(ctx, ledger.AccountConfig{ID: "bob", MaxHistory: -1})
	assert.ErrorIs(t, err, ledger.ErrInvalidAccount)

	_, err = r.Get("bob")
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)
}

func TestRegistry_Register_DerivesIDFromName(t *testing.T) {
	r := newRegistry(t, ledger.Options{})

	l, err := r.Register(context.Background(), ledger.AccountConfig{Name: "Bob's Jar"})
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, "bob_s_jar", cfg.ID)
	assert.Equal(t, "$", cfg.CurrencySymbol)
	assert.Equal(t, ledger.DefaultMaxHistory, cfg.MaxHistory)
	assertMoney(t, "0.00", l.Balance())
}

func TestRegistry_Register_CSVLoggingWithoutFactory(t *testing.T) {
	r := newRegistry(t, ledger.Options{})

	cfg := aliceConfig(2)
	cfg.CSVLogging = true

	_, err := r.Register(context.Background(), cfg)
	assert.ErrorIs(t, err, ledger.ErrInvalidAccount)

	_, err = r.Get("alice")
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)
}

func TestRegistry_Apply(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, ledger.Options{})

	_, err := r.Register(ctx, aliceConfig(2))
	require.NoError(t, err)

	rec, err := r.Apply(ctx, "alice", ledger.Params{Amount: "5"})
	require.NoError(t, err)
	assertMoney(t, "15.00", rec.BalanceAfter)

	_, err = r.Apply(ctx, "carol", ledger.Params{Amount: "5"})
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)

	_, err = r.Apply(ctx, "alice", ledger.Params{Amount: "abc"})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	snap, err := r.Snapshot("alice")
	require.NoError(t, err)
	assertMoney(t, "15.00", snap.Balance)
}

func TestRegistry_ResolveAction(t *testing.T) {
	r := newRegistry(t, ledger.Options{})

	_, err := r.Register(context.Background(), aliceConfig(2))
	require.NoError(t, err)

	id, err := r.ResolveAction(ledger.ActionName("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	for _, name := range []string{"bob_add_transaction", "_add_transaction", "alice", "alice_add"} {
		_, err := r.ResolveAction(name)
		assert.ErrorIs(t, err, ledger.ErrUnknownAccount, name)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	ctx := context.Background()
	states := store.NewMemory()
	r := newRegistry(t, ledger.Options{Store: states})

	_, err := r.Register(ctx, aliceConfig(2))
	require.NoError(t, err)

	_, err = states.LoadState(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, r.Unregister(ctx, "alice"))

	_, err = r.Get("alice")
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)

	_, err = states.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, ledger.ErrStateNotFound)

	assert.ErrorIs(t, r.Unregister(ctx, "alice"), ledger.ErrUnknownAccount)

	// a fresh registration seeds again
	l, err := r.Register(ctx, aliceConfig(2))
	require.NoError(t, err)
	assert.Len(t, l.Snapshot().History, 1)
}

func TestRegistry_Snapshots(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, ledger.Options{})

	for _, name := range []string{"Zed", "alice", "Mia"} {
		_, err := r.Register(ctx, ledger.AccountConfig{Name: name})
		require.NoError(t, err)
	}

	snaps := r.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, "alice", snaps[0].Account.ID)
	assert.Equal(t, "mia", snaps[1].Account.ID)
	assert.Equal(t, "zed", snaps[2].Account.ID)
}

func TestRegistry_CSVLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r := ledger.NewRegistry(ledger.Options{NewAppender: csvlog.Factory(dir), Clock: fixedClock})

	cfg := aliceConfig(2)
	cfg.CSVLogging = true

	_, err := r.Register(ctx, cfg)
	require.NoError(t, err)

	_, err = r.Apply(ctx, "alice", ledger.Params{Amount: "5", Description: "Allowance"})
	require.NoError(t, err)

	_, err = r.Apply(ctx, "alice", ledger.Params{Amount: "-3.50", Description: "Ice cream, large"})
	require.NoError(t, err)

	require.NoError(t, r.Close())

	f, err := os.Open(csvlog.PathFor(dir, "alice"))
	require.NoError(t, err)
	defer f.Close()

	recs, err := csvlog.Read(f)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, ledger.DescriptionInitial, recs[0].Description)
	assertMoney(t, "10.00", recs[0].BalanceAfter)
	assert.Equal(t, "Allowance", recs[1].Description)
	assertMoney(t, "15.00", recs[1].BalanceAfter)
	assert.Equal(t, "Ice cream, large", recs[2].Description)
	assertMoney(t, "-3.50", recs[2].Amount)
	assertMoney(t, "11.50", recs[2].BalanceAfter)

	assert.NoError(t, csvlog.Verify(recs))
}

func TestRegistry_Restore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	states := store.NewMemory()
	opts := ledger.Options{NewAppender: csvlog.Factory(dir), Store: states, Clock: fixedClock}

	cfg := aliceConfig(5)
	cfg.CSVLogging = true

	first := ledger.NewRegistry(opts)

	_, err := first.Register(ctx, cfg)
	require.NoError(t, err)

	_, err = first.Apply(ctx, "alice", ledger.Params{Amount: "5"})
	require.NoError(t, err)

	_, err = first.Register(ctx, ledger.AccountConfig{Name: "Bob", InitialBalance: decimal.NewFromInt(3)})
	require.NoError(t, err)

	require.NoError(t, first.Close())

	second := ledger.NewRegistry(opts)
	defer second.Close()

	require.NoError(t, second.Restore(ctx))

	snaps := second.Snapshots()
	require.Len(t, snaps, 2)
	assertMoney(t, "15.00", snaps[0].Balance)
	assert.Len(t, snaps[0].History, 2)
	assertMoney(t, "3.00", snaps[1].Balance)

	_, err = second.Apply(ctx, "alice", ledger.Params{Amount: "-3.50"})
	require.NoError(t, err)

	require.NoError(t, second.Close())

	f, err := os.Open(csvlog.PathFor(dir, "alice"))
	require.NoError(t, err)
	defer f.Close()

	recs, err := csvlog.Read(f)
	require.NoError(t, err)
	require.Len(t, recs, 3, "restored account must not be seeded twice")
	assert.NoError(t, csvlog.Verify(recs))
}

func TestRegistry_PublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)

	pub := ledger.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev ledger.Event) error {
			assert.Equal(t, "alice", ev.AccountID)
			assert.Equal(t, "$", ev.CurrencySymbol)
			assertMoney(t, "15.00", ev.Balance)
			assertMoney(t, "5.00", ev.Record.Amount)
			return nil
		})
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	r := newRegistry(t, ledger.Options{Publisher: pub})

	_, err := r.Register(context.Background(), aliceConfig(2))
	require.NoError(t, err)

	_, err = r.Apply(context.Background(), "alice", ledger.Params{Amount: "5"})
	require.NoError(t, err)

	// publish failures never fail the transaction
	_, err = r.Apply(context.Background(), "alice", ledger.Params{Amount: "1"})
	require.NoError(t, err)
}

func TestRegistry_CommitTimeoutBoundsSlowPublisher(t *testing.T) {
	ctrl := gomock.NewController(t)

	pub := ledger.NewMockPublisher(ctrl)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ ledger.Event) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)

			<-ctx.Done()
			return ctx.Err()
		}).
		Times(2)

	r := newRegistry(t, ledger.Options{Publisher: pub, CommitTimeout: 20 * time.Millisecond})

	_, err := r.Register(context.Background(), aliceConfig(2))
	require.NoError(t, err)

	for _, amount := range []string{"5", "1"} {
		done := make(chan error, 1)
		go func() {
			_, err := r.Apply(context.Background(), "alice", ledger.Params{Amount: amount})
			done <- err
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("apply blocked on the publisher")
		}
	}

	snap, err := r.Snapshot("alice")
	require.NoError(t, err)
	assertMoney(t, "16.00", snap.Balance)
}

func TestRegistry_StateStoreFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)

	states := ledger.NewMockStateStore(ctrl)
	states.EXPECT().LoadState(gomock.Any(), "alice").Return(nil, ledger.ErrStateNotFound)
	states.EXPECT().SaveState(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")).Times(2)

	r := newRegistry(t, ledger.Options{Store: states})

	_, err := r.Register(context.Background(), aliceConfig(2))
	require.NoError(t, err)

	rec, err := r.Apply(context.Background(), "alice", ledger.Params{Amount: "5"})
	require.NoError(t, err)
	assertMoney(t, "15.00", rec.BalanceAfter)
}

// gatedAppender lets the seed through and then blocks every append until
// release is closed.
type gatedAppender struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (a *gatedAppender) Append(ctx context.Context, _ ledger.Record) error {
	if a.calls.Add(1) == 1 {
		return nil
	}

	close(a.started)

	select {
	case <-a.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *gatedAppender) Close() error { return nil }

func TestRegistry_AccountsAreIndependent(t *testing.T) {
	ctx := context.Background()
	slow := &gatedAppender{started: make(chan struct{}), release: make(chan struct{})}

	r := newRegistry(t, ledger.Options{
		NewAppender: func(string) (ledger.Appender, error) { return slow, nil },
	})

	cfg := aliceConfig(2)
	cfg.CSVLogging = true

	_, err := r.Register(ctx, cfg)
	require.NoError(t, err)

	_, err = r.Register(ctx, ledger.AccountConfig{ID: "bob"})
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		_, err := r.Apply(ctx, "alice", ledger.Params{Amount: "1"})
		done <- err
	}()

	<-slow.started

	applied := make(chan error, 1)

	go func() {
		_, err := r.Apply(ctx, "bob", ledger.Params{Amount: "2"})
		applied <- err
	}()

	select {
	case err := <-applied:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transaction on bob waited for alice's log append")
	}

	close(slow.release)
	assert.NoError(t, <-done)
}
