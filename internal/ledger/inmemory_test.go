package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/storage"
)

func pendingCashOut(user, agent string, at time.Time) Transaction {
	return Transaction{
		ID:             uuid.NewString(),
		Kind:           KindCashOut,
		UserID:         user,
		CounterpartyID: agent,
		Amount:         decimal.NewFromInt(100),
		Fee:            decimal.RequireFromString("1.5"),
		Status:         StatusPending,
		CreatedAt:      at,
	}
}

func TestInMemoryLedger_RecordAndGet(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx := pendingCashOut("user-a", "agent-a", time.Now())

	if err := l.Record(ctx, tx); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := l.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending || !got.Fee.Equal(tx.Fee) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := l.Record(ctx, tx); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryLedger_TransitionHappensOnce(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx := pendingCashOut("user-a", "agent-a", time.Now())
	_ = l.Record(ctx, tx)

	settled, err := l.Transition(ctx, tx.ID, StatusApproved, time.Now())
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if settled.Status != StatusApproved || settled.SettledAt == nil {
		t.Fatalf("unexpected settled record: %+v", settled)
	}

	if _, err := l.Transition(ctx, tx.ID, StatusRejected, time.Now()); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
}

func TestInMemoryLedger_CompletedTransferIsImmutable(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	tx := pendingCashOut("user-a", "user-b", time.Now())
	tx.Kind = KindTransfer
	tx.Status = StatusCompleted
	_ = l.Record(ctx, tx)

	if _, err := l.Transition(ctx, tx.ID, StatusApproved, time.Now()); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
}

func TestInMemoryLedger_RollbackUndoesRecordAndTransition(t *testing.T) {
	l := NewInMemory()
	runner := storage.NewMemoryRunner(time.Second)
	ctx := context.Background()
	existing := pendingCashOut("user-a", "agent-a", time.Now())
	_ = l.Record(ctx, existing)
	fresh := pendingCashOut("user-a", "agent-a", time.Now())

	boom := errors.New("boom")
	err := runner.Run(ctx, func(ctx context.Context) error {
		if err := l.Record(ctx, fresh); err != nil {
			return err
		}
		if _, err := l.Transition(ctx, existing.ID, StatusApproved, time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := l.Get(ctx, fresh.ID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected rolled back record to be gone, got %v", err)
	}
	got, _ := l.Get(ctx, existing.ID)
	if got.Status != StatusPending || got.SettledAt != nil {
		t.Fatalf("expected pending record after rollback, got %+v", got)
	}
}

func TestInMemoryLedger_QueryNewestFirstWithFilters(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		tx := pendingCashOut("user-a", "agent-a", base.Add(time.Duration(i)*time.Minute))
		if i%3 == 0 {
			tx.Kind = KindTransfer
			tx.Status = StatusCompleted
		}
		_ = l.Record(ctx, tx)
	}
	_ = l.Record(ctx, pendingCashOut("user-z", "agent-z", base))

	all, _ := l.Query(ctx, Query{AccountID: "user-a", Limit: 10})
	if len(all) != 10 {
		t.Fatalf("expected limit of 10, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("results not newest first at %d", i)
		}
	}

	transfers, _ := l.Query(ctx, Query{AccountID: "user-a", Kind: KindTransfer})
	if len(transfers) != 4 {
		t.Fatalf("expected 4 transfers, got %d", len(transfers))
	}

	pending, _ := l.Query(ctx, Query{AccountID: "agent-a", Side: SideCounterparty, Status: StatusPending})
	if len(pending) != 8 {
		t.Fatalf("expected 8 pending for agent, got %d", len(pending))
	}
	if asUser, _ := l.Query(ctx, Query{AccountID: "agent-a", Side: SideUser}); len(asUser) != 0 {
		t.Fatalf("agent should not match as user, got %d", len(asUser))
	}
}

func TestInMemoryLedger_ConcurrentTransitionsSettleOnce(t *testing.T) {
	l := NewInMemory()
	runner := storage.NewMemoryRunner(5 * time.Second)
	ctx := context.Background()
	tx := pendingCashOut("user-a", "agent-a", time.Now())
	_ = l.Record(ctx, tx)

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := runner.Run(ctx, func(ctx context.Context) error {
				if _, err := l.GetForUpdate(ctx, tx.ID); err != nil {
					return err
				}
				_, err := l.Transition(ctx, tx.ID, StatusApproved, time.Now())
				return err
			})
			switch {
			case err == nil:
				mu.Lock()
				applied++
				mu.Unlock()
			case !errors.Is(err, ErrAlreadyProcessed):
				t.Errorf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one transition, got %d", applied)
	}
}
