// Package settlement lets an agent approve or reject a pending cash request.
// Approval moves the money; rejection only closes the request.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/notification"
	"github.com/congo-pay/mobile_money/internal/storage"
)

// ErrNotAuthorized indicates the caller may not settle the transaction.
var ErrNotAuthorized = errors.New("not authorized to settle this transaction")

// Service settles pending cash transactions.
type Service struct {
	accounts account.Store
	ledger   ledger.Ledger
	runner   storage.Runner
	fees     fee.Policy
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a settlement service.
func NewService(accounts account.Store, ledger ledger.Ledger, runner storage.Runner, fees fee.Policy, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		ledger:   ledger,
		runner:   runner,
		fees:     fees,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SettleInput identifies the transaction, the acting agent and the decision.
type SettleInput struct {
	TransactionID string
	AgentID       string
	Approve       bool
}

// Settle approves or rejects a pending cash transaction. The transaction is
// re-read under lock, so concurrent settlements of one id resolve to exactly
// one success and ErrAlreadyProcessed for the rest. A failed approval leaves
// the transaction pending.
func (s *Service) Settle(ctx context.Context, input SettleInput) (ledger.Transaction, error) {
	agent, err := s.accounts.Get(ctx, input.AgentID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return ledger.Transaction{}, ErrNotAuthorized
		}
		return ledger.Transaction{}, err
	}
	if agent.Role != account.RoleAgent {
		return ledger.Transaction{}, ErrNotAuthorized
	}

	// Unlocked read to learn the parties; everything is checked again under lock.
	peek, err := s.ledger.Get(ctx, input.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if peek.AgentID() != input.AgentID {
		return ledger.Transaction{}, ErrNotAuthorized
	}

	var settled ledger.Transaction
	err = s.runner.Run(ctx, func(ctx context.Context) error {
		ids := append([]string{peek.UserID, peek.CounterpartyID}, s.fees.LockIDs()...)
		if err := s.accounts.Lock(ctx, ids...); err != nil {
			return err
		}
		tx, err := s.ledger.GetForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status != ledger.StatusPending {
			return ledger.ErrAlreadyProcessed
		}

		to := ledger.StatusRejected
		if input.Approve {
			if err := s.apply(ctx, tx); err != nil {
				return err
			}
			to = ledger.StatusApproved
		}

		settled, err = s.ledger.Transition(ctx, tx.ID, to, s.now())
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	notification.Deliver(ctx, s.notifier, s.logger, settled)
	return settled, nil
}

func (s *Service) apply(ctx context.Context, tx ledger.Transaction) error {
	user, err := s.accounts.Get(ctx, tx.UserID)
	if err != nil {
		return err
	}
	agent, err := s.accounts.Get(ctx, tx.AgentID())
	if err != nil {
		return err
	}
	if user.Blocked() || agent.Blocked() {
		return account.ErrAccountBlocked
	}

	switch tx.Kind {
	case ledger.KindCashIn:
		if agent.Balance.LessThan(tx.Amount) {
			return account.ErrInsufficientFunds
		}
		if _, err := account.Debit(ctx, s.accounts, agent.ID, tx.Amount); err != nil {
			return fmt.Errorf("debit agent: %w", err)
		}
		if _, err := account.Credit(ctx, s.accounts, user.ID, tx.Amount); err != nil {
			return fmt.Errorf("credit user: %w", err)
		}
	case ledger.KindCashOut:
		total := tx.Amount.Add(tx.Fee)
		if user.Balance.LessThan(total) {
			return account.ErrInsufficientFunds
		}
		if _, err := account.Debit(ctx, s.accounts, user.ID, total); err != nil {
			return fmt.Errorf("debit user: %w", err)
		}
		if _, err := account.Credit(ctx, s.accounts, agent.ID, tx.Amount); err != nil {
			return fmt.Errorf("credit agent: %w", err)
		}
		if err := s.fees.Dispose(ctx, s.accounts, tx.Fee); err != nil {
			return err
		}
	default:
		return fmt.Errorf("settle %s: %w", tx.Kind, ledger.ErrAlreadyProcessed)
	}
	return nil
}
