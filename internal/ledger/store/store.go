package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

// Store persists account states in Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: account_id, name, currency_symbol, initial_balance,
// max_history, csv_logging, balance, history, last_update
const selectStateColumns = `
	account_id, name, currency_symbol, initial_balance,
	max_history, csv_logging, balance, history, last_update
`

func scanState(s scanner) (*ledger.State, error) {
	var st ledger.State

	var history []byte

	if err := s.Scan(
		&st.Account.ID, &st.Account.Name, &st.Account.CurrencySymbol, &st.Account.InitialBalance,
		&st.Account.MaxHistory, &st.Account.CSVLogging, &st.Balance, &history, &st.LastUpdate,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(history, &st.History); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}

	st.LastUpdate = st.LastUpdate.UTC()

	return &st, nil
}

func (s *Store) LoadState(ctx context.Context, accountID string) (*ledger.State, error) {
	query := `SELECT ` + selectStateColumns + ` FROM account_states WHERE account_id = $1`

	st, err := scanState(s.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrStateNotFound
		}

		return nil, fmt.Errorf("loading state: %w", err)
	}

	return st, nil
}

func (s *Store) SaveState(ctx context.Context, st *ledger.State) error {
	history, err := json.Marshal(st.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	query := `
		INSERT INTO account_states (account_id, name, currency_symbol, initial_balance,
			max_history, csv_logging, balance, history, last_update, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			name = EXCLUDED.name,
			currency_symbol = EXCLUDED.currency_symbol,
			max_history = EXCLUDED.max_history,
			csv_logging = EXCLUDED.csv_logging,
			balance = EXCLUDED.balance,
			history = EXCLUDED.history,
			last_update = EXCLUDED.last_update,
			updated_at = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		st.Account.ID,
		st.Account.Name,
		st.Account.CurrencySymbol,
		st.Account.InitialBalance,
		st.Account.MaxHistory,
		st.Account.CSVLogging,
		st.Balance,
		string(history),
		st.LastUpdate,
	)
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	return nil
}

func (s *Store) DeleteState(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM account_states WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("deleting state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting state: %w", err)
	}

	if n == 0 {
		return ledger.ErrStateNotFound
	}

	return nil
}

func (s *Store) ListStates(ctx context.Context) ([]*ledger.State, error) {
	query := `SELECT ` + selectStateColumns + ` FROM account_states ORDER BY account_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	defer rows.Close()

	var states []*ledger.State

	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning state: %w", err)
		}

		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state rows: %w", err)
	}

	return states, nil
}

var _ ledger.StateStore = (*Store)(nil)
