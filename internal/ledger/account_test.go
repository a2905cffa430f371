package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Alice", want: "alice"},
		{input: "Bob's Savings", want: "bob_s_savings"},
		{input: "  --Kid #2--  ", want: "kid_2"},
		{input: "already_ok_9", want: "already_ok_9"},
		{input: "Zoë", want: "zo"},
		{input: "!!!", want: "pocket_money_item"},
		{input: "", want: "pocket_money_item"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.SanitizeID(tt.input))
		})
	}
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "alice_add_transaction", ledger.ActionName("alice"))
}

func TestAccountConfig_WithDefaults(t *testing.T) {
	cfg := ledger.AccountConfig{Name: "Alice Smith", InitialBalance: decimal.RequireFromString("10.005")}.WithDefaults()

	assert.Equal(t, "alice_smith", cfg.ID)
	assert.Equal(t, "Alice Smith", cfg.Name)
	assert.Equal(t, ledger.DefaultCurrencySymbol, cfg.CurrencySymbol)
	assert.Equal(t, ledger.DefaultMaxHistory, cfg.MaxHistory)
	assert.Equal(t, "10.01", cfg.InitialBalance.StringFixed(2))
	assert.False(t, cfg.CSVLogging)
}

func TestAccountConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ledger.AccountConfig
		wantErr bool
	}{
		{
			name: "Valid",
			cfg:  ledger.AccountConfig{ID: "alice", Name: "Alice", CurrencySymbol: "€", MaxHistory: 2},
		},
		{
			name:    "NegativeHistory",
			cfg:     ledger.AccountConfig{ID: "alice", CurrencySymbol: "$", MaxHistory: -1},
			wantErr: true,
		},
		{
			name:    "UppercaseID",
			cfg:     ledger.AccountConfig{ID: "Alice", CurrencySymbol: "$", MaxHistory: 5},
			wantErr: true,
		},
		{
			name:    "MissingCurrency",
			cfg:     ledger.AccountConfig{ID: "alice", MaxHistory: 5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, ledger.ErrInvalidAccount)
				return
			}

			assert.NoError(t, err)
		})
	}
}
