package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/pocketmoney/internal/events"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

func sampleEvent() ledger.Event {
	return ledger.Event{
		AccountID: "alice",
		Record: ledger.Record{
			Amount:       decimal.NewFromInt(5),
			Description:  "Allowance",
			BalanceAfter: decimal.NewFromInt(15),
		},
		Balance:        decimal.NewFromInt(15),
		CurrencySymbol: "$",
	}
}

func TestLogPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer

	p := events.NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))

	out := buf.String()
	assert.Contains(t, out, "account updated")
	assert.Contains(t, out, "account_id=alice")
	assert.Contains(t, out, "balance=15.00")
	assert.Contains(t, out, "amount=5.00")
}

func TestFanout_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := ledger.NewMockPublisher(ctrl)
	second := ledger.NewMockPublisher(ctrl)

	errBroker := errors.New("broker unavailable")

	gomock.InOrder(
		first.EXPECT().Publish(gomock.Any(), sampleEvent()).Return(errBroker),
		second.EXPECT().Publish(gomock.Any(), sampleEvent()).Return(nil),
	)

	err := events.Fanout{first, second}.Publish(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, errBroker)
}
