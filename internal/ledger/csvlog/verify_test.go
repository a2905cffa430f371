package csvlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

func TestVerify(t *testing.T) {
	valid := []ledger.Record{
		record("10", "10", ledger.DescriptionInitial),
		record("5", "15", "Allowance"),
		record("-3.5", "11.5", "Ice cream"),
	}

	assert.NoError(t, csvlog.Verify(valid))
	assert.NoError(t, csvlog.Verify(nil))

	broken := []ledger.Record{
		record("10", "10", ledger.DescriptionInitial),
		record("5", "16", "Allowance"),
	}

	err := csvlog.Verify(broken)
	require.Error(t, err)

	var chainErr *csvlog.ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, 1, chainErr.Index)
	assert.Equal(t, "15.00", chainErr.Want.StringFixed(2))
	assert.Equal(t, "16.00", chainErr.Got.StringFixed(2))
}
