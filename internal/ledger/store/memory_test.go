package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/store"
)

func sampleState(id string, balance int64) *ledger.State {
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	return &ledger.State{
		Account: ledger.AccountConfig{
			ID:             id,
			Name:           id,
			CurrencySymbol: "€",
			InitialBalance: decimal.NewFromInt(balance),
			MaxHistory:     5,
		},
		Balance: decimal.NewFromInt(balance),
		History: []ledger.Record{{
			ID:           uuid.New(),
			Timestamp:    at,
			Amount:       decimal.NewFromInt(balance),
			Description:  ledger.DescriptionInitial,
			BalanceAfter: decimal.NewFromInt(balance),
		}},
		LastUpdate: at,
	}
}

func TestMemory_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, ledger.ErrStateNotFound)

	want := sampleState("alice", 10)
	require.NoError(t, m.SaveState(ctx, want))

	got, err := m.LoadState(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, want.Account.ID, got.Account.ID)
	assert.Equal(t, "€", got.Account.CurrencySymbol)
	assert.True(t, want.Balance.Equal(got.Balance))
	require.Len(t, got.History, 1)
	assert.Equal(t, want.History[0].ID, got.History[0].ID)
	assert.True(t, want.LastUpdate.Equal(got.LastUpdate))

	// stored states are detached from the caller's values
	got.History[0].Description = "changed"

	again, err := m.LoadState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.DescriptionInitial, again.History[0].Description)
}

func TestMemory_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for _, id := range []string{"zed", "alice", "mia"} {
		require.NoError(t, m.SaveState(ctx, sampleState(id, 1)))
	}

	states, err := m.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, "alice", states[0].Account.ID)
	assert.Equal(t, "mia", states[1].Account.ID)
	assert.Equal(t, "zed", states[2].Account.ID)

	require.NoError(t, m.DeleteState(ctx, "mia"))
	assert.ErrorIs(t, m.DeleteState(ctx, "mia"), ledger.ErrStateNotFound)

	states, err = m.ListStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}
