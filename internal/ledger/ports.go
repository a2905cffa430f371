package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=ledger

// Appender durably appends records to an account's log.
type Appender interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// StateStore keeps the live state of accounts across restarts.
type StateStore interface {
	LoadState(ctx context.Context, accountID string) (*State, error)
	SaveState(ctx context.Context, state *State) error
	DeleteState(ctx context.Context, accountID string) error
	ListStates(ctx context.Context) ([]*State, error)
}

// Publisher notifies the display layer that an account changed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// State is the persisted form of a ledger.
type State struct {
	Account    AccountConfig   `json:"account"`
	Balance    decimal.Decimal `json:"balance"`
	History    []Record        `json:"history"`
	LastUpdate time.Time       `json:"last_update"`
}

// Event is emitted after every applied transaction.
type Event struct {
	AccountID      string          `json:"account_id"`
	Record         Record          `json:"record"`
	Balance        decimal.Decimal `json:"balance"`
	CurrencySymbol string          `json:"currency_symbol"`
}

// Snapshot is the read-only view of one account.
type Snapshot struct {
	Account    AccountConfig
	Balance    decimal.Decimal
	History    []Record // most recent last
	LastUpdate time.Time
}

func (s Snapshot) state() *State {
	return &State{
		Account:    s.Account,
		Balance:    s.Balance,
		History:    s.History,
		LastUpdate: s.LastUpdate,
	}
}
