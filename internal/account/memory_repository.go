package account

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/storage"
)

type memoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryStore constructs an in-memory Store for tests and development.
// It participates in storage.MemoryRunner units.
func NewMemoryStore() Store {
	return &memoryStore{accounts: make(map[string]Account)}
}

func (s *memoryStore) Create(ctx context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return ErrAccountExists
	}
	account.UpdatedAt = account.CreatedAt
	s.accounts[account.ID] = account
	storage.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.accounts, account.ID)
	})
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (s *memoryStore) Lock(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "account:"+id)
	}
	return storage.Lock(ctx, keys...)
}

func (s *memoryStore) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}
	acc.Balance = next
	acc.UpdatedAt = time.Now().UTC()
	s.accounts[id] = acc

	storage.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[id]
		a.Balance = a.Balance.Sub(delta)
		s.accounts[id] = a
	})
	return next, nil
}

func (s *memoryStore) SetState(ctx context.Context, id string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	prev := acc.State
	acc.State = state
	acc.UpdatedAt = time.Now().UTC()
	s.accounts[id] = acc

	storage.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.accounts[id]
		a.State = prev
		s.accounts[id] = a
	})
	return nil
}
