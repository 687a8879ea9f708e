// Package funding queues agent-mediated cash-in and cash-out requests.
// Nothing moves at request time: balances change only when the agent
// settles the transaction.
package funding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/money"
	"github.com/congo-pay/mobile_money/internal/notification"
)

var (
	// ErrUserNotFound indicates the requesting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAgentNotFound indicates the agent does not exist or is not an agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrNotAgent indicates the caller is not an agent.
	ErrNotAgent = errors.New("caller is not an agent")
)

// Service records pending cash requests.
type Service struct {
	accounts account.Store
	ledger   ledger.Ledger
	fees     fee.Policy
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a funding service.
func NewService(accounts account.Store, ledger ledger.Ledger, fees fee.Policy, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		ledger:   ledger,
		fees:     fees,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CashInput identifies the user, the agent and the amount of a request.
type CashInput struct {
	UserID  string
	AgentID string
	Amount  decimal.Decimal
}

// RequestCashIn queues a deposit of cash handed to the agent. The agent
// float check is advisory; settlement checks again.
func (s *Service) RequestCashIn(ctx context.Context, input CashInput) (ledger.Transaction, error) {
	_, agent, err := s.parties(ctx, input)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if agent.Balance.LessThan(input.Amount) {
		return ledger.Transaction{}, account.ErrInsufficientFunds
	}
	return s.enqueue(ctx, ledger.KindCashIn, input, money.Zero)
}

// RequestCashOut queues a withdrawal paid out in cash by the agent. The user
// balance check is advisory; settlement checks again.
func (s *Service) RequestCashOut(ctx context.Context, input CashInput) (ledger.Transaction, error) {
	user, _, err := s.parties(ctx, input)
	if err != nil {
		return ledger.Transaction{}, err
	}
	charge := s.fees.Compute(ledger.KindCashOut, input.Amount)
	if user.Balance.LessThan(input.Amount.Add(charge)) {
		return ledger.Transaction{}, account.ErrInsufficientFunds
	}
	return s.enqueue(ctx, ledger.KindCashOut, input, charge)
}

// Pending returns the agent's queue of pending requests, newest first.
func (s *Service) Pending(ctx context.Context, agentID string) ([]ledger.Transaction, error) {
	agent, err := s.accounts.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, ErrNotAgent
		}
		return nil, err
	}
	if agent.Role != account.RoleAgent {
		return nil, ErrNotAgent
	}
	return s.ledger.Query(ctx, ledger.Query{
		AccountID: agentID,
		Side:      ledger.SideCounterparty,
		Status:    ledger.StatusPending,
	})
}

func (s *Service) parties(ctx context.Context, input CashInput) (account.Account, account.Account, error) {
	if err := money.Validate(input.Amount); err != nil {
		return account.Account{}, account.Account{}, err
	}
	if input.UserID == input.AgentID {
		return account.Account{}, account.Account{}, account.ErrSameAccount
	}

	user, err := s.accounts.Get(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return account.Account{}, account.Account{}, ErrUserNotFound
		}
		return account.Account{}, account.Account{}, err
	}
	agent, err := s.accounts.Get(ctx, input.AgentID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return account.Account{}, account.Account{}, ErrAgentNotFound
		}
		return account.Account{}, account.Account{}, err
	}
	if agent.Role != account.RoleAgent {
		return account.Account{}, account.Account{}, ErrAgentNotFound
	}
	if user.Blocked() || agent.Blocked() {
		return account.Account{}, account.Account{}, account.ErrAccountBlocked
	}
	return user, agent, nil
}

func (s *Service) enqueue(ctx context.Context, kind ledger.Kind, input CashInput, charge decimal.Decimal) (ledger.Transaction, error) {
	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		Kind:           kind,
		UserID:         input.UserID,
		CounterpartyID: input.AgentID,
		Amount:         input.Amount,
		Fee:            charge,
		Status:         ledger.StatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.ledger.Record(ctx, tx); err != nil {
		return ledger.Transaction{}, err
	}
	notification.Deliver(ctx, s.notifier, s.logger, tx)
	return tx, nil
}
