package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

// Memory keeps states in process memory. States are stored as JSON so that
// callers never share slices with the store.
type Memory struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string][]byte)}
}

func (m *Memory) LoadState(_ context.Context, accountID string) (*ledger.State, error) {
	m.mu.RLock()
	raw, ok := m.states[accountID]
	m.mu.RUnlock()

	if !ok {
		return nil, ledger.ErrStateNotFound
	}

	return decodeState(raw)
}

func (m *Memory) SaveState(_ context.Context, state *ledger.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	m.mu.Lock()
	m.states[state.Account.ID] = raw
	m.mu.Unlock()

	return nil
}

func (m *Memory) DeleteState(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states[accountID]; !ok {
		return ledger.ErrStateNotFound
	}

	delete(m.states, accountID)

	return nil
}

func (m *Memory) ListStates(_ context.Context) ([]*ledger.State, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	slices.SortFunc(ids, strings.Compare)

	states := make([]*ledger.State, 0, len(ids))

	for _, id := range ids {
		m.mu.RLock()
		raw, ok := m.states[id]
		m.mu.RUnlock()

		if !ok {
			continue
		}

		st, err := decodeState(raw)
		if err != nil {
			return nil, err
		}

		states = append(states, st)
	}

	return states, nil
}

func decodeState(raw []byte) (*ledger.State, error) {
	var st ledger.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}

	return &st, nil
}

var _ ledger.StateStore = (*Memory)(nil)
