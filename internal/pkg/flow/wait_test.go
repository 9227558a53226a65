package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitAtLeastFastOperation(t *testing.T) {
	clk := clock.NewMock()

	floor := WaitAtLeast(clk, 500*time.Millisecond)

	// the operation takes 100ms
	clk.Add(100 * time.Millisecond)
	assert.Equal(t, 400*time.Millisecond, floor.Remaining())

	done := make(chan error, 1)

	go func() { done <- floor.Wait(context.Background()) }()

	clk.Add(399 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("resolved before the floor")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Add(time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("did not resolve at the floor")
	}
}

func TestWaitAtLeastSlowOperation(t *testing.T) {
	clk := clock.NewMock()

	floor := WaitAtLeast(clk, 500*time.Millisecond)

	clk.Add(800 * time.Millisecond)

	assert.LessOrEqual(t, floor.Remaining(), time.Duration(0))
	assert.NoError(t, floor.Wait(context.Background()))
}

func TestWaitAtLeastCancelled(t *testing.T) {
	clk := clock.NewMock()
	floor := WaitAtLeast(clk, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, floor.Wait(ctx), context.Canceled)
}

func TestWaitAtLeastReachedIgnoresCancel(t *testing.T) {
	clk := clock.NewMock()
	floor := WaitAtLeast(clk, time.Second)

	clk.Add(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, floor.Wait(ctx))
}

func TestAtLeastKeepsErrorsOnTheFloor(t *testing.T) {
	clk := clock.NewMock()
	boom := errors.New("boom")

	var finished atomic.Bool

	go func() {
		_, err := AtLeast(context.Background(), clk, 500*time.Millisecond, func(context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
		finished.Store(true)
	}()

	require.Eventually(t, func() bool {
		if finished.Load() {
			return true
		}

		clk.Add(50 * time.Millisecond)

		return false
	}, time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, clk.Now().Sub(time.Unix(0, 0)), 500*time.Millisecond)
}

func TestAtLeastWithRealClock(t *testing.T) {
	started := time.Now()

	v, err := AtLeast(context.Background(), clock.New(), 30*time.Millisecond, func(context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)
}

func TestSchedulerRunsAndStops(t *testing.T) {
	clk := clock.NewMock()
	s := NewScheduler(clk)

	var immediate, delayed, cancelled atomic.Bool

	require.True(t, s.Schedule(0, func() { immediate.Store(true) }))
	require.True(t, s.Schedule(time.Second, func() { delayed.Store(true) }))
	require.True(t, s.Schedule(time.Hour, func() { cancelled.Store(true) }))

	assert.Equal(t, 2, s.Pending())

	clk.Add(time.Second)

	require.Eventually(t, func() bool { return immediate.Load() && delayed.Load() }, time.Second, time.Millisecond)

	s.Stop()
	assert.True(t, s.Stopped())
	assert.Zero(t, s.Pending())
	assert.False(t, s.Schedule(0, func() { t.Error("scheduled after stop") }))

	clk.Add(time.Hour)
	s.Wait()

	assert.False(t, cancelled.Load())
}
