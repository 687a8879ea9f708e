// Package storage provides the atomic unit every balance-mutating operation
// runs in. A Runner executes a function as one all-or-nothing unit; stores
// discover the active unit through the context they are handed.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrInternal marks a failure of the atomic unit itself (begin, lock or
// commit). Nothing from the unit is visible after it is returned, so the
// caller may retry the identical request.
var ErrInternal = errors.New("internal failure")

const defaultUnitTimeout = 5 * time.Second

// Runner executes fn as a single atomic unit. If fn returns an error every
// mutation made through the context is rolled back and the error is returned
// unchanged.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// detach strips caller cancellation so a disconnecting client cannot abort a
// unit halfway, and bounds the unit with its own deadline instead.
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultUnitTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
