// Package kafka publishes account updates to a Kafka topic, keyed by account
// so that updates of one account stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

const DefaultTopic = "pocket_money_updates"

// Publish runs while the account is locked, so a dead broker must fail fast
// instead of going through kafka-go's default ten attempts.
const (
	writeTimeout = 5 * time.Second
	maxAttempts  = 3
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           writeTimeout,
			MaxAttempts:            maxAttempts,
		},
	}
}

type payload struct {
	AccountID    string    `json:"account_id"`
	RecordID     string    `json:"record_id"`
	Timestamp    time.Time `json:"timestamp"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter string    `json:"balance_after"`
	Currency     string    `json:"currency_symbol"`
}

func newMessage(ev ledger.Event) (kafka.Message, error) {
	data, err := json.Marshal(payload{
		AccountID:    ev.AccountID,
		RecordID:     ev.Record.ID.String(),
		Timestamp:    ev.Record.Timestamp,
		Amount:       ev.Record.Amount.StringFixed(2),
		Description:  ev.Record.Description,
		BalanceAfter: ev.Balance.StringFixed(2),
		Currency:     ev.CurrencySymbol,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(ev.AccountID),
		Value: data,
		Time:  ev.Record.Timestamp,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev ledger.Event) error {
	msg, err := newMessage(ev)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event to %s: %w", p.writer.Topic, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ledger.Publisher = (*Publisher)(nil)
