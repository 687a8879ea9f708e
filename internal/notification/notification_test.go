package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/mobile_money/internal/ledger"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared []string
	sent     []published
	err      error
}

func (f *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func settledCashOut() ledger.Transaction {
	settled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return ledger.Transaction{
		ID:             "tx-1",
		Kind:           ledger.KindCashOut,
		UserID:         "user-1",
		CounterpartyID: "agent-1",
		Amount:         decimal.NewFromInt(200),
		Fee:            decimal.NewFromInt(3),
		Status:         ledger.StatusApproved,
		CreatedAt:      settled.Add(-time.Hour),
		SettledAt:      &settled,
	}
}

func TestTransactionEvent(t *testing.T) {
	tx := settledCashOut()
	event := TransactionEvent(tx)
	assert.Equal(t, KindTransactionApproved, event.Kind)
	assert.Equal(t, *tx.SettledAt, event.OccurredAt)

	tx.Status = ledger.StatusPending
	tx.SettledAt = nil
	event = TransactionEvent(tx)
	assert.Equal(t, KindTransactionPending, event.Kind)
	assert.Equal(t, tx.CreatedAt, event.OccurredAt)
}

func TestAMQPPublisherSend(t *testing.T) {
	ch := &fakeChannel{}
	pub, err := NewAMQPPublisher(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{Exchange}, ch.declared)

	require.NoError(t, pub.Send(context.Background(), TransactionEvent(settledCashOut())))
	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, Exchange, sent.exchange)
	assert.Equal(t, KindTransactionApproved, sent.key)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, "200", body["amount"])
	assert.Equal(t, "cash-out", body["kind"])
}

func TestDeliverLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ch := &fakeChannel{err: errors.New("channel closed")}
	pub, err := NewAMQPPublisher(ch)
	require.NoError(t, err)

	Deliver(context.Background(), pub, logger, settledCashOut())
	assert.Contains(t, buf.String(), "notification failed")
	assert.Contains(t, buf.String(), "channel closed")

	Deliver(context.Background(), nil, logger, settledCashOut())
}
