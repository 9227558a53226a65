package flow

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Floor is a point in time an operation must not resolve before.
type Floor struct {
	clock    clock.Clock
	deadline time.Time
}

// WaitAtLeast starts a floor of d. Capture it before issuing the operation
// and Wait on it once the operation finished, whether it failed or not.
func WaitAtLeast(clk clock.Clock, d time.Duration) Floor {
	return Floor{
		clock:    clk,
		deadline: clk.Now().Add(d),
	}
}

// Remaining is the time left until the floor is reached.
func (f Floor) Remaining() time.Duration {
	return f.deadline.Sub(f.clock.Now())
}

// Wait blocks until the floor is reached or ctx is done. A floor already
// reached never fails.
func (f Floor) Wait(ctx context.Context) error {
	remaining := f.Remaining()
	if remaining <= 0 {
		return nil
	}

	select {
	case <-f.clock.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AtLeast runs op and returns its result no sooner than d after the call.
func AtLeast[T any](ctx context.Context, clk clock.Clock, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	floor := WaitAtLeast(clk, d)

	v, err := op(ctx)

	if werr := floor.Wait(ctx); werr != nil && err == nil {
		var zero T

		return zero, werr
	}

	return v, err
}
