// Package events delivers account updates to whatever displays them.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

// LogPublisher writes every account update to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev ledger.Event) error {
	p.logger.InfoContext(ctx, "account updated",
		"account_id", ev.AccountID,
		"record_id", ev.Record.ID,
		"amount", ev.Record.Amount.StringFixed(2),
		"description", ev.Record.Description,
		"balance", ev.Balance.StringFixed(2),
		"currency", ev.CurrencySymbol,
	)

	return nil
}

// Fanout publishes to every publisher in order and joins their errors.
type Fanout []ledger.Publisher

func (f Fanout) Publish(ctx context.Context, ev ledger.Event) error {
	var errs []error

	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

var (
	_ ledger.Publisher = (*LogPublisher)(nil)
	_ ledger.Publisher = Fanout(nil)
)
