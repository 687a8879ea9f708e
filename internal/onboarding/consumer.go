// Package onboarding keeps accounts in step with the identity service: it
// opens an account when a holder registers and follows activation changes.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/congo-pay/mobile_money/internal/account"
)

// Topology of the identity events this consumer reads.
const (
	Exchange   = "identity_events"
	Queue      = "ledger_accounts"
	BindingKey = "account.#"

	KeyRegistered   = "account.registered"
	KeyStateChanged = "account.state_changed"
)

// ErrPoison marks a message that can never be processed; it is dropped
// instead of requeued.
var ErrPoison = errors.New("unprocessable message")

// Registered announces a new account holder.
type Registered struct {
	ID   string       `json:"id"`
	Role account.Role `json:"role"`
}

// StateChanged announces an activation change.
type StateChanged struct {
	ID    string        `json:"id"`
	State account.State `json:"state"`
}

// Accounts is the part of account.Service the consumer drives.
type Accounts interface {
	Open(ctx context.Context, id string, role account.Role) (account.Account, error)
	Transition(ctx context.Context, id string, next account.State) (account.Account, error)
}

// Consumer applies identity events to accounts.
type Consumer struct {
	accounts Accounts
	logger   *slog.Logger
	timeout  time.Duration
}

// NewConsumer constructs a consumer.
func NewConsumer(accounts Accounts, logger *slog.Logger) *Consumer {
	return &Consumer{accounts: accounts, logger: logger, timeout: 5 * time.Second}
}

// Handle applies one message. Errors wrapping ErrPoison must not be retried.
func (c *Consumer) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case KeyRegistered:
		var msg Registered
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrPoison, routingKey, err)
		}
		if msg.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrPoison, routingKey)
		}
		acc, err := c.accounts.Open(ctx, msg.ID, msg.Role)
		if err != nil {
			if errors.Is(err, account.ErrInvalidRole) {
				return fmt.Errorf("%w: %v", ErrPoison, err)
			}
			return err
		}
		c.logger.Info("account opened", "account_id", acc.ID, "role", acc.Role, "balance", acc.Balance.String())
		return nil

	case KeyStateChanged:
		var msg StateChanged
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrPoison, routingKey, err)
		}
		acc, err := c.accounts.Transition(ctx, msg.ID, msg.State)
		if err != nil {
			if errors.Is(err, account.ErrInvalidStateTransition) || errors.Is(err, account.ErrAccountNotFound) {
				return fmt.Errorf("%w: %v", ErrPoison, err)
			}
			return err
		}
		c.logger.Info("account state changed", "account_id", acc.ID, "state", acc.State)
		return nil

	default:
		return fmt.Errorf("%w: unknown routing key %q", ErrPoison, routingKey)
	}
}

// Run processes deliveries until ctx is done or the channel closes. Poison
// messages are dropped, other failures are requeued.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.Handle(hctx, d.RoutingKey, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "routing_key", d.RoutingKey, "error", ackErr)
		}
	case errors.Is(err, ErrPoison):
		c.logger.Warn("dropping message", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", "routing_key", d.RoutingKey, "error", nackErr)
		}
	default:
		c.logger.Error("message failed, requeueing", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "routing_key", d.RoutingKey, "error", nackErr)
		}
	}
}

// Setup declares the exchange, queue and binding, and starts consuming with
// manual acknowledgements.
func Setup(ch *amqp.Channel, consumerTag string) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(Queue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, BindingKey, Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return msgs, nil
}
