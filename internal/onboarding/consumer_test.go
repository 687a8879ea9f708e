package onboarding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/storage"
)

type ackRecorder struct {
	mu       sync.Mutex
	acked    []uint64
	dropped  []uint64
	requeued []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued = append(a.requeued, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type flakyAccounts struct{}

func (flakyAccounts) Open(context.Context, string, account.Role) (account.Account, error) {
	return account.Account{}, errors.New("connection reset")
}

func (flakyAccounts) Transition(context.Context, string, account.State) (account.Account, error) {
	return account.Account{}, errors.New("connection reset")
}

func newService() *account.Service {
	return account.NewService(account.NewMemoryStore(), storage.NewMemoryRunner(time.Second), decimal.NewFromInt(10_000))
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleRegisteredOpensAccountOnce(t *testing.T) {
	svc := newService()
	c := NewConsumer(svc, discard())
	ctx := context.Background()

	body := []byte(`{"id":"agent-7","role":"agent"}`)
	require.NoError(t, c.Handle(ctx, KeyRegistered, body))
	require.NoError(t, c.Handle(ctx, KeyRegistered, body))

	bal, err := svc.Balance(ctx, "agent-7")
	require.NoError(t, err)
	assert.Equal(t, "10000", bal.Amount.String())
}

func TestHandleStateChanged(t *testing.T) {
	svc := newService()
	c := NewConsumer(svc, discard())
	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, KeyRegistered, []byte(`{"id":"user-7","role":"user"}`)))

	require.NoError(t, c.Handle(ctx, KeyStateChanged, []byte(`{"id":"user-7","state":"approved"}`)))
	acc, _ := svc.Get(ctx, "user-7")
	assert.Equal(t, account.StateApproved, acc.State)

	err := c.Handle(ctx, KeyStateChanged, []byte(`{"id":"user-7","state":"pending"}`))
	assert.ErrorIs(t, err, ErrPoison)
}

func TestHandlePoisonMessages(t *testing.T) {
	c := NewConsumer(newService(), discard())
	ctx := context.Background()

	cases := map[string]struct {
		key  string
		body string
	}{
		"bad json":      {KeyRegistered, `{`},
		"missing id":    {KeyRegistered, `{"role":"user"}`},
		"system role":   {KeyRegistered, `{"id":"x","role":"system"}`},
		"unknown key":   {"account.deleted", `{"id":"x"}`},
		"unknown state": {KeyStateChanged, `{"id":"ghost","state":"active"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.Handle(ctx, tc.key, []byte(tc.body)), ErrPoison)
		})
	}
}

func TestRunAcksDropsAndRequeues(t *testing.T) {
	acks := &ackRecorder{}
	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, RoutingKey: KeyRegistered, Body: []byte(`{"id":"u1","role":"user"}`)}
	deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, RoutingKey: KeyRegistered, Body: []byte(`nope`)}
	close(deliveries)

	err := NewConsumer(newService(), discard()).Run(context.Background(), deliveries)
	require.Error(t, err)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2}, acks.dropped)

	transient := make(chan amqp.Delivery, 1)
	transient <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, RoutingKey: KeyRegistered, Body: []byte(`{"id":"u2","role":"user"}`)}
	close(transient)
	_ = NewConsumer(flakyAccounts{}, discard()).Run(context.Background(), transient)
	assert.Equal(t, []uint64{3}, acks.requeued)
}
