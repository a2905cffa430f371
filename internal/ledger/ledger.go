package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Policy decides what happens to the live balance when the durable log append fails.
type Policy string

const (
	// PolicyReport keeps the applied transaction and reports the failure.
	PolicyReport Policy = "report"
	// PolicyRollback undoes the in-memory mutation and rejects the transaction.
	PolicyRollback Policy = "rollback"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyReport:
		return PolicyReport, nil
	case PolicyRollback:
		return p, nil
	default:
		return "", fmt.Errorf("unknown persistence policy %q", s)
	}
}

// Params is an inbound transaction request. Amount is required; the other
// fields are optional.
type Params struct {
	Amount      string
	Description string
	Timestamp   string
}

type commitFunc func(ctx context.Context, snap Snapshot, rec Record)

// Ledger owns the balance and recent history of one account.
// All mutations go through Apply, which serializes per account.
type Ledger struct {
	cfg        AccountConfig
	appender   Appender
	policy     Policy
	logTimeout time.Duration
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
	onCommit   commitFunc

	mu         sync.Mutex
	balance    decimal.Decimal
	history    []Record
	lastUpdate time.Time
	closed     bool
}

type Option func(*Ledger)

// WithAppender sets the durable log writer. The ledger takes ownership and
// closes it on Close. It is ignored when CSV logging is disabled.
func WithAppender(a Appender) Option {
	return func(l *Ledger) { l.appender = a }
}

func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithLogTimeout bounds every durable log append. Zero means no bound.
func WithLogTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.logTimeout = d }
}

// WithLocation sets the timezone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func withCommitHook(fn commitFunc) Option {
	return func(l *Ledger) { l.onCommit = fn }
}

func newLedger(cfg AccountConfig, opts []Option) *Ledger {
	l := &Ledger{
		cfg:    cfg,
		policy: PolicyReport,
		loc:    time.UTC,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if !cfg.CSVLogging {
		l.appender = nil
	}

	l.logger = l.logger.With("account_id", cfg.ID)

	return l
}

// New creates a ledger seeded with the initial balance record, which is also
// appended to the durable log when CSV logging is enabled.
//
// Under PolicyReport a failed seed append still returns the ledger, together
// with a *PersistenceError.
func New(ctx context.Context, cfg AccountConfig, opts ...Option) (*Ledger, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := newLedger(cfg, opts)
	if cfg.CSVLogging && l.appender == nil {
		return nil, fmt.Errorf("%w: csv logging enabled without a log writer", ErrInvalidAccount)
	}

	seed := seedRecord(cfg.InitialBalance, clockTime(l.now()))
	l.balance = seed.BalanceAfter
	l.history = []Record{seed}
	l.lastUpdate = seed.Timestamp

	if err := l.persist(ctx, seed); err != nil {
		perr := &PersistenceError{AccountID: cfg.ID, Record: seed, Err: err}

		if l.policy == PolicyRollback {
			perr.RolledBack = true
			_ = l.Close()

			return nil, perr
		}

		l.logger.Error("failed to append initial balance to durable log", "error", err)

		return l, perr
	}

	return l, nil
}

// Restore rebuilds a ledger from persisted state without seeding.
func Restore(state *State, opts ...Option) (*Ledger, error) {
	cfg := state.Account.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := newLedger(cfg, opts)
	if cfg.CSVLogging && l.appender == nil {
		return nil, fmt.Errorf("%w: csv logging enabled without a log writer", ErrInvalidAccount)
	}

	l.balance = state.Balance
	l.history = trimHistory(slices.Clone(state.History), cfg.MaxHistory)
	l.lastUpdate = state.LastUpdate

	return l, nil
}

func (l *Ledger) ID() string { return l.cfg.ID }

func (l *Ledger) Config() AccountConfig { return l.cfg }

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balance
}

// Apply posts one transaction. Invalid amounts are rejected before any state
// changes. The durable log append, when enabled, has completed (or failed) by
// the time Apply returns; see Policy for how failures are handled.
func (l *Ledger) Apply(ctx context.Context, p Params) (*Record, error) {
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	ts, ok := ParseTimestamp(p.Timestamp, l.loc, l.now())
	if !ok && strings.TrimSpace(p.Timestamp) != "" {
		l.logger.Warn("unparsable timestamp, using current time", "timestamp", p.Timestamp)
	}

	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = defaultDescription(amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, l.cfg.ID)
	}

	prevBalance, prevHistory, prevUpdate := l.balance, l.history, l.lastUpdate

	rec := Record{
		ID:           uuid.New(),
		Timestamp:    ts,
		Amount:       amount,
		Description:  desc,
		BalanceAfter: l.balance.Add(amount),
	}

	l.balance = rec.BalanceAfter
	l.history = trimHistory(append(l.history, rec), l.cfg.MaxHistory)
	l.lastUpdate = rec.Timestamp

	if err := l.persist(ctx, rec); err != nil {
		perr := &PersistenceError{AccountID: l.cfg.ID, Record: rec, Err: err}

		if l.policy == PolicyRollback {
			l.balance, l.history, l.lastUpdate = prevBalance, prevHistory, prevUpdate
			perr.RolledBack = true

			l.logger.Error("durable log append failed, transaction rolled back",
				"record_id", rec.ID, "amount", rec.Amount.StringFixed(amountPlaces), "error", err)

			return nil, perr
		}

		l.logger.Error("durable log append failed, balance kept",
			"record_id", rec.ID, "amount", rec.Amount.StringFixed(amountPlaces),
			"balance", rec.BalanceAfter.StringFixed(amountPlaces), "error", err)

		l.commit(ctx, rec)

		return &rec, perr
	}

	l.commit(ctx, rec)

	return &rec, nil
}

// persist appends to the durable log. The caller's cancellation is ignored:
// once the balance has moved the append must run to completion or time out.
func (l *Ledger) persist(ctx context.Context, rec Record) error {
	if l.appender == nil {
		return nil
	}

	ctx = context.WithoutCancel(ctx)

	if l.logTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, l.logTimeout)
		defer cancel()
	}

	return l.appender.Append(ctx, rec)
}

func (l *Ledger) commit(ctx context.Context, rec Record) {
	if l.onCommit == nil {
		return
	}

	l.onCommit(context.WithoutCancel(ctx), l.snapshotLocked(), rec)
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		Account:    l.cfg,
		Balance:    l.balance,
		History:    slices.Clone(l.history),
		LastUpdate: l.lastUpdate,
	}
}

// Close releases the durable log handle. It waits for an in-flight Apply.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	if l.appender == nil {
		return nil
	}

	if err := l.appender.Close(); err != nil {
		return fmt.Errorf("closing log of %q: %w", l.cfg.ID, err)
	}

	return nil
}

// trimHistory evicts the oldest records until at most limit remain.
func trimHistory(h []Record, limit int) []Record {
	over := len(h) - limit
	if over <= 0 {
		return h
	}

	return slices.Clone(h[over:])
}
