package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/money"
	"github.com/congo-pay/mobile_money/internal/notification"
	"github.com/congo-pay/mobile_money/internal/storage"
)

// ErrRecipientNotFound indicates the transfer target does not exist.
var ErrRecipientNotFound = errors.New("recipient not found")

// Service executes immediate transfers between accounts.
type Service struct {
	accounts account.Store
	ledger   ledger.Ledger
	runner   storage.Runner
	fees     fee.Policy
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a payment service.
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

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	SenderID    string
	RecipientID string
	Amount      decimal.Decimal
}

// Transfer debits amount plus fee from the sender and credits amount to the
// recipient in one unit, recording a completed transaction.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.Transaction, error) {
	if err := money.Validate(input.Amount); err != nil {
		return ledger.Transaction{}, err
	}

	if _, err := s.accounts.Get(ctx, input.RecipientID); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return ledger.Transaction{}, ErrRecipientNotFound
		}
		return ledger.Transaction{}, err
	}
	if _, err := s.accounts.Get(ctx, input.SenderID); err != nil {
		return ledger.Transaction{}, err
	}
	if input.SenderID == input.RecipientID {
		return ledger.Transaction{}, account.ErrSameAccount
	}
	if err := s.fees.CheckMinimum(ledger.KindTransfer, input.Amount); err != nil {
		return ledger.Transaction{}, err
	}

	charge := s.fees.Compute(ledger.KindTransfer, input.Amount)
	total := input.Amount.Add(charge)

	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		Kind:           ledger.KindTransfer,
		UserID:         input.SenderID,
		CounterpartyID: input.RecipientID,
		Amount:         input.Amount,
		Fee:            charge,
		Status:         ledger.StatusCompleted,
	}

	err := s.runner.Run(ctx, func(ctx context.Context) error {
		ids := append([]string{input.SenderID, input.RecipientID}, s.fees.LockIDs()...)
		if err := s.accounts.Lock(ctx, ids...); err != nil {
			return err
		}

		sender, err := s.accounts.Get(ctx, input.SenderID)
		if err != nil {
			return err
		}
		recipient, err := s.accounts.Get(ctx, input.RecipientID)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}
		if sender.Blocked() || recipient.Blocked() {
			return account.ErrAccountBlocked
		}
		if sender.Balance.LessThan(total) {
			return account.ErrInsufficientFunds
		}

		if _, err := account.Debit(ctx, s.accounts, sender.ID, total); err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}
		if _, err := account.Credit(ctx, s.accounts, recipient.ID, input.Amount); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		if err := s.fees.Dispose(ctx, s.accounts, charge); err != nil {
			return err
		}

		tx.CreatedAt = s.now()
		return s.ledger.Record(ctx, tx)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	notification.Deliver(ctx, s.notifier, s.logger, tx)
	return tx, nil
}
