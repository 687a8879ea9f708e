package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/congo-pay/mobile_money/internal/storage"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	records map[string]Transaction
	seq     map[string]uint64
	next    uint64
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		records: make(map[string]Transaction),
		seq:     make(map[string]uint64),
	}
}

func (l *inMemoryLedger) Record(ctx context.Context, tx Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.records[tx.ID]; exists {
		return ErrDuplicateTransaction
	}
	l.next++
	l.records[tx.ID] = tx
	l.seq[tx.ID] = l.next

	storage.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.records, tx.ID)
		delete(l.seq, tx.ID)
	})
	return nil
}

func (l *inMemoryLedger) Get(_ context.Context, id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.records[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (l *inMemoryLedger) GetForUpdate(ctx context.Context, id string) (Transaction, error) {
	if err := storage.Lock(ctx, "tx:"+id); err != nil {
		return Transaction{}, err
	}
	return l.Get(ctx, id)
}

func (l *inMemoryLedger) Transition(ctx context.Context, id string, to Status, at time.Time) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.records[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if !tx.Status.CanTransitionTo(to) {
		return Transaction{}, ErrAlreadyProcessed
	}
	prev := tx
	settled := at.UTC()
	tx.Status = to
	tx.SettledAt = &settled
	l.records[id] = tx

	storage.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.records[id] = prev
	})
	return tx, nil
}

func (l *inMemoryLedger) Query(_ context.Context, q Query) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, 0)
	for _, tx := range l.records {
		if q.matches(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return l.seq[out[i].ID] > l.seq[out[j].ID]
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
