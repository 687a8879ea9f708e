package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedAccount is a test helper that puts an active account with the given
// role and balance into the in-memory store, replacing any existing one.
func SeedAccount(s Store, id string, role Role, amount int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		now := time.Now().UTC()
		mem.accounts[id] = Account{
			ID:        id,
			Role:      role,
			State:     StateActive,
			Balance:   decimal.NewFromInt(amount),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
}

// SeedBalance is a test helper that overwrites the balance of an account held
// by the in-memory store. Unknown ids are seeded as active users.
func SeedBalance(s Store, id string, amount int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		acc, exists := mem.accounts[id]
		mem.mu.Unlock()
		if !exists {
			SeedAccount(s, id, RoleUser, amount)
			return
		}
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acc.Balance = decimal.NewFromInt(amount)
		mem.accounts[id] = acc
	}
}

// TotalBalance sums every balance held by the in-memory store.
func TotalBalance(s Store) decimal.Decimal {
	total := decimal.Zero
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		for _, acc := range mem.accounts {
			total = total.Add(acc.Balance)
		}
	}
	return total
}
