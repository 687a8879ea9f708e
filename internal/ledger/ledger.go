package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionNotFound is returned when no transaction has the requested id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyProcessed is returned when a transaction is no longer pending.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrDuplicateTransaction is returned when recording an id that already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// Kind is the closed set of money movements.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindCashIn   Kind = "cash-in"
	KindCashOut  Kind = "cash-out"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTransfer, KindCashIn, KindCashOut:
		return true
	}
	return false
}

// Deferred reports whether the kind waits for agent settlement.
func (k Kind) Deferred() bool {
	return k == KindCashIn || k == KindCashOut
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether s may move to next. Only pending
// transactions move, and only once.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// Transaction is a recorded money movement. For transfers UserID is the
// sender and CounterpartyID the recipient; for cash kinds UserID is the user
// and CounterpartyID the agent.
type Transaction struct {
	ID             string
	Kind           Kind
	UserID         string
	CounterpartyID string
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	SettledAt      *time.Time
}

// AgentID returns the agent party of a cash transaction.
func (t Transaction) AgentID() string {
	if t.Kind.Deferred() {
		return t.CounterpartyID
	}
	return ""
}

// Involves reports whether accountID is a party to the transaction.
func (t Transaction) Involves(accountID string) bool {
	return t.UserID == accountID || t.CounterpartyID == accountID
}

// Side selects which party of a transaction a query matches on.
type Side int

const (
	SideAny Side = iota
	SideUser
	SideCounterparty
)

// Query filters transactions of one account.
type Query struct {
	AccountID string
	Side      Side
	Kind      Kind
	Status    Status
	Limit     int
}

func (q Query) matches(t Transaction) bool {
	switch q.Side {
	case SideUser:
		if t.UserID != q.AccountID {
			return false
		}
	case SideCounterparty:
		if t.CounterpartyID != q.AccountID {
			return false
		}
	default:
		if !t.Involves(q.AccountID) {
			return false
		}
	}
	if q.Kind != "" && t.Kind != q.Kind {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	return true
}

// Ledger owns every transaction record. Records are append-only; Transition
// is the only mutation and applies to pending records exactly once.
type Ledger interface {
	Record(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	// GetForUpdate loads the record and locks it for the rest of the unit.
	GetForUpdate(ctx context.Context, id string) (Transaction, error)
	Transition(ctx context.Context, id string, to Status, at time.Time) (Transaction, error)
	// Query returns matching transactions, most recent first.
	Query(ctx context.Context, q Query) ([]Transaction, error)
}
