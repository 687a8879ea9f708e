package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/storage"
)

// DefaultAgentOnboardingCredit is the float every agent starts with.
var DefaultAgentOnboardingCredit = decimal.NewFromInt(10_000)

// Service exposes account lifecycle operations on top of a Store.
type Service struct {
	store            Store
	runner           storage.Runner
	onboardingCredit decimal.Decimal
}

// NewService builds an account service. A non-positive onboarding credit
// falls back to DefaultAgentOnboardingCredit.
func NewService(store Store, runner storage.Runner, onboardingCredit decimal.Decimal) *Service {
	if !onboardingCredit.IsPositive() {
		onboardingCredit = DefaultAgentOnboardingCredit
	}
	return &Service{store: store, runner: runner, onboardingCredit: onboardingCredit}
}

// Store returns the underlying account store.
func (s *Service) Store() Store {
	return s.store
}

// Open creates a user or agent account with its starting balance. Opening an
// id that already exists returns the stored account and never credits again.
func (s *Service) Open(ctx context.Context, id string, role Role) (Account, error) {
	if id == "" {
		return Account{}, fmt.Errorf("account id is required")
	}

	var opening decimal.Decimal
	switch role {
	case RoleUser:
		opening = decimal.Zero
	case RoleAgent:
		opening = s.onboardingCredit
	default:
		return Account{}, ErrInvalidRole
	}

	acc := Account{
		ID:        id,
		Role:      role,
		State:     StatePending,
		Balance:   opening,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return s.store.Get(ctx, id)
		}
		return Account{}, err
	}
	acc.UpdatedAt = acc.CreatedAt
	return acc, nil
}

// EnsureSystem makes sure a platform-owned account exists, e.g. the fee account.
func (s *Service) EnsureSystem(ctx context.Context, id string) (Account, error) {
	acc := Account{
		ID:        id,
		Role:      RoleSystem,
		State:     StateActive,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, acc); err != nil {
		if !errors.Is(err, ErrAccountExists) {
			return Account{}, err
		}
		existing, err := s.store.Get(ctx, id)
		if err != nil {
			return Account{}, err
		}
		if existing.Role != RoleSystem {
			return Account{}, fmt.Errorf("account %s exists with role %s: %w", id, existing.Role, ErrInvalidRole)
		}
		return existing, nil
	}
	return acc, nil
}

// Transition moves an account to the next activation state.
func (s *Service) Transition(ctx context.Context, id string, next State) (Account, error) {
	if !next.Valid() {
		return Account{}, ErrInvalidStateTransition
	}
	var out Account
	err := s.runner.Run(ctx, func(ctx context.Context) error {
		if err := s.store.Lock(ctx, id); err != nil {
			return err
		}
		acc, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if acc.State == next {
			out = acc
			return nil
		}
		if !acc.State.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", acc.State, next, ErrInvalidStateTransition)
		}
		if err := s.store.SetState(ctx, id, next); err != nil {
			return err
		}
		acc.State = next
		out = acc
		return nil
	})
	return out, err
}

// Get retrieves an account.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.store.Get(ctx, id)
}

// Balance returns the display balance of the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	amount, err := GetBalance(ctx, s.store, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: id, Amount: amount, AsOf: time.Now().UTC()}, nil
}
