package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRunner provides units for the in-memory stores. Isolation comes from
// per-key locks acquired in ascending key order; atomicity comes from an undo
// journal the stores append to and which is replayed in reverse on failure.
type MemoryRunner struct {
	mu      sync.Mutex
	slots   map[string]chan struct{}
	timeout time.Duration
}

// NewMemoryRunner constructs a Runner for the in-memory backends.
func NewMemoryRunner(timeout time.Duration) *MemoryRunner {
	return &MemoryRunner{slots: make(map[string]chan struct{}), timeout: timeout}
}

type memoryUnit struct {
	runner  *MemoryRunner
	held    map[string]struct{}
	release []chan struct{}
	undo    []func()
}

type unitKey struct{}

// Run implements Runner.
func (r *MemoryRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(unitKey{}).(*memoryUnit); ok {
		return fn(ctx)
	}

	ctx, cancel := detach(ctx, r.timeout)
	defer cancel()

	u := &memoryUnit{runner: r, held: make(map[string]struct{})}
	defer u.unlock()

	if err := fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		u.rollback()
		return err
	}
	return nil
}

func (r *MemoryRunner) slot(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.slots[key] = ch
	}
	return ch
}

func (u *memoryUnit) unlock() {
	for i := len(u.release) - 1; i >= 0; i-- {
		<-u.release[i]
	}
	u.release = nil
}

func (u *memoryUnit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

// Lock acquires the named keys for the unit carried by ctx, in ascending
// order, and holds them until the unit ends. Keys the unit already holds are
// skipped. Callers must take every key of a unit in one call, otherwise the
// ordering guarantee is lost. Outside a memory unit Lock does nothing.
func Lock(ctx context.Context, keys ...string) error {
	u, ok := ctx.Value(unitKey{}).(*memoryUnit)
	if !ok {
		return nil
	}

	pending := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, held := u.held[k]; !held {
			pending = append(pending, k)
		}
	}
	sort.Strings(pending)

	for _, k := range pending {
		ch := u.runner.slot(k)
		select {
		case ch <- struct{}{}:
			u.held[k] = struct{}{}
			u.release = append(u.release, ch)
		case <-ctx.Done():
			return fmt.Errorf("%w: lock %s: %v", ErrInternal, k, ctx.Err())
		}
	}
	return nil
}

// OnRollback registers fn to run if the memory unit carried by ctx fails.
// Outside a unit the mutation is final and fn is dropped.
func OnRollback(ctx context.Context, fn func()) {
	if u, ok := ctx.Value(unitKey{}).(*memoryUnit); ok {
		u.undo = append(u.undo, fn)
	}
}
