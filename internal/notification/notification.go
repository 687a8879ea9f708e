// Package notification delivers transaction events to downstream systems
// once the unit that produced them has committed.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/ledger"
)

// Routing keys of the transaction events.
const (
	KindTransactionCompleted = "transaction.completed"
	KindTransactionPending   = "transaction.pending"
	KindTransactionApproved  = "transaction.approved"
	KindTransactionRejected  = "transaction.rejected"
)

// Event is the payload published for a transaction.
type Event struct {
	Kind           string          `json:"event"`
	TransactionID  string          `json:"transaction_id"`
	TxKind         ledger.Kind     `json:"kind"`
	UserID         string          `json:"user_id"`
	CounterpartyID string          `json:"counterparty_id"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	Status         ledger.Status   `json:"status"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// TransactionEvent builds the event announcing the current status of tx.
func TransactionEvent(tx ledger.Transaction) Event {
	occurred := tx.CreatedAt
	if tx.SettledAt != nil {
		occurred = *tx.SettledAt
	}
	return Event{
		Kind:           "transaction." + string(tx.Status),
		TransactionID:  tx.ID,
		TxKind:         tx.Kind,
		UserID:         tx.UserID,
		CounterpartyID: tx.CounterpartyID,
		Amount:         tx.Amount,
		Fee:            tx.Fee,
		Status:         tx.Status,
		OccurredAt:     occurred,
	}
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// Deliver sends the event for tx and logs a failure instead of returning it.
// Money has already moved by the time it runs.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, tx ledger.Transaction) {
	if n == nil {
		return
	}
	event := TransactionEvent(tx)
	if err := n.Send(context.WithoutCancel(ctx), event); err != nil && logger != nil {
		logger.Warn("notification failed",
			slog.String("event", event.Kind),
			slog.String("transaction_id", event.TransactionID),
			slog.Any("error", err),
		)
	}
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"event", event.Kind,
		"transaction_id", event.TransactionID,
		"user_id", event.UserID,
		"counterparty_id", event.CounterpartyID,
		"amount", event.Amount.String(),
	)
	return nil
}
