package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Options configures every ledger created by a Registry.
type Options struct {
	// NewAppender opens the durable log of an account. Required when any
	// account enables CSV logging.
	NewAppender func(accountID string) (Appender, error)
	Store       StateStore
	Publisher   Publisher
	Policy      Policy
	LogTimeout  time.Duration
	// CommitTimeout bounds saving state and publishing the event of each
	// transaction. Both run while the account is locked. Zero means no bound.
	CommitTimeout time.Duration
	Location      *time.Location
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Registry owns the ledgers of all accounts. Its lock only guards the map:
// transactions on different accounts never wait on each other.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	ledgers  map[string]*Ledger
	reserved map[string]struct{}
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Registry{
		opts:     opts,
		logger:   opts.Logger,
		ledgers:  make(map[string]*Ledger),
		reserved: make(map[string]struct{}),
	}
}

// Register creates the ledger of a new account. If the state store holds a
// saved state for the account it is restored instead of seeded again.
func (r *Registry) Register(ctx context.Context, cfg AccountConfig) (*Ledger, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	state, err := r.loadState(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}

	if state != nil {
		state.Account = cfg
	}

	return r.register(ctx, cfg, state)
}

// Restore registers every account found in the state store.
func (r *Registry) Restore(ctx context.Context) error {
	if r.opts.Store == nil {
		return nil
	}

	states, err := r.opts.Store.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("listing saved accounts: %w", err)
	}

	for _, st := range states {
		if _, err := r.register(ctx, st.Account.WithDefaults(), st); err != nil {
			return fmt.Errorf("restoring account %q: %w", st.Account.ID, err)
		}

		r.logger.Info("restored account", "account_id", st.Account.ID, "balance", st.Balance.StringFixed(amountPlaces))
	}

	return nil
}

func (r *Registry) register(ctx context.Context, cfg AccountConfig, state *State) (*Ledger, error) {
	if err := r.reserve(cfg.ID); err != nil {
		return nil, err
	}
	defer r.release(cfg.ID)

	opts, err := r.ledgerOptions(cfg)
	if err != nil {
		return nil, err
	}

	var l *Ledger

	if state != nil {
		l, err = Restore(state, opts...)
	} else {
		l, err = New(ctx, cfg, opts...)
		if errors.Is(err, ErrPersistence) && l != nil {
			err = nil
		}
	}

	if err != nil {
		return nil, err
	}

	r.saveState(ctx, l.Snapshot())

	r.mu.Lock()
	r.ledgers[cfg.ID] = l
	r.mu.Unlock()

	r.logger.Info("registered account", "account_id", cfg.ID, "csv_logging", cfg.CSVLogging, "restored", state != nil)

	return l, nil
}

func (r *Registry) ledgerOptions(cfg AccountConfig) ([]Option, error) {
	opts := []Option{
		WithPolicy(r.opts.Policy),
		WithLogTimeout(r.opts.LogTimeout),
		WithLogger(r.logger),
		withCommitHook(r.onCommit),
	}

	if r.opts.Policy == "" {
		opts[0] = WithPolicy(PolicyReport)
	}

	if r.opts.Location != nil {
		opts = append(opts, WithLocation(r.opts.Location))
	}

	if r.opts.Clock != nil {
		opts = append(opts, WithClock(r.opts.Clock))
	}

	if cfg.CSVLogging {
		if r.opts.NewAppender == nil {
			return nil, fmt.Errorf("%w: csv logging is not available", ErrInvalidAccount)
		}

		a, err := r.opts.NewAppender(cfg.ID)
		if err != nil {
			return nil, fmt.Errorf("opening log of %q: %w", cfg.ID, err)
		}

		opts = append(opts, WithAppender(a))
	}

	return opts, nil
}

func (r *Registry) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ledgers[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAccount, id)
	}

	if _, ok := r.reserved[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAccount, id)
	}

	r.reserved[id] = struct{}{}

	return nil
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.reserved, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Ledger, error) {
	r.mu.RLock()
	l, ok := r.ledgers[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}

	return l, nil
}

// Apply is the single entry point for posting a transaction to an account.
func (r *Registry) Apply(ctx context.Context, accountID string, p Params) (*Record, error) {
	l, err := r.Get(accountID)
	if err != nil {
		return nil, err
	}

	return l.Apply(ctx, p)
}

// ResolveAction maps a per-account action name such as
// "alice_add_transaction" to the account it targets.
func (r *Registry) ResolveAction(name string) (string, error) {
	id, ok := strings.CutSuffix(name, actionSuffix)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no account for action %q", ErrUnknownAccount, name)
	}

	if _, err := r.Get(id); err != nil {
		return "", err
	}

	return id, nil
}

// Unregister removes an account. Its durable log is left untouched.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	l, ok := r.ledgers[id]
	delete(r.ledgers, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}

	var errs []error

	if err := l.Close(); err != nil {
		errs = append(errs, err)
	}

	if r.opts.Store != nil {
		if err := r.opts.Store.DeleteState(ctx, id); err != nil && !errors.Is(err, ErrStateNotFound) {
			errs = append(errs, fmt.Errorf("deleting state of %q: %w", id, err))
		}
	}

	r.logger.Info("unregistered account", "account_id", id)

	return errors.Join(errs...)
}

func (r *Registry) Snapshot(id string) (Snapshot, error) {
	l, err := r.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	return l.Snapshot(), nil
}

// Snapshots returns every account ordered by id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	ledgers := make([]*Ledger, 0, len(r.ledgers))
	for _, l := range r.ledgers {
		ledgers = append(ledgers, l)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(ledgers))
	for _, l := range ledgers {
		snaps = append(snaps, l.Snapshot())
	}

	slices.SortFunc(snaps, func(a, b Snapshot) int {
		return strings.Compare(a.Account.ID, b.Account.ID)
	})

	return snaps
}

// Close closes every ledger's durable log. Saved state is kept so the
// accounts come back on the next Restore.
func (r *Registry) Close() error {
	r.mu.Lock()
	ledgers := r.ledgers
	r.ledgers = make(map[string]*Ledger)
	r.mu.Unlock()

	var errs []error

	for _, l := range ledgers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) loadState(ctx context.Context, id string) (*State, error) {
	if r.opts.Store == nil {
		return nil, nil
	}

	st, err := r.opts.Store.LoadState(ctx, id)
	if errors.Is(err, ErrStateNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("loading state of %q: %w", id, err)
	}

	return st, nil
}

func (r *Registry) saveState(ctx context.Context, snap Snapshot) {
	if r.opts.Store == nil {
		return
	}

	if err := r.opts.Store.SaveState(ctx, snap.state()); err != nil {
		r.logger.Warn("failed to save account state", "account_id", snap.Account.ID, "error", err)
	}
}

// onCommit runs inside the ledger's critical section, so saved states and
// events follow application order.
func (r *Registry) onCommit(ctx context.Context, snap Snapshot, rec Record) {
	if r.opts.CommitTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.opts.CommitTimeout)
		defer cancel()
	}

	r.saveState(ctx, snap)

	if r.opts.Publisher == nil {
		return
	}

	err := r.opts.Publisher.Publish(ctx, Event{
		AccountID:      snap.Account.ID,
		Record:         rec,
		Balance:        snap.Balance,
		CurrencySymbol: snap.Account.CurrencySymbol,
	})
	if err != nil {
		r.logger.Warn("failed to publish account update", "account_id", snap.Account.ID, "error", err)
	}
}
