package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRepeatingTask_Validation(t *testing.T) {
	_, err := NewRepeatingTask("t", time.Second, nil, nil)
	assert.ErrorIs(t, err, ErrNilTask)

	_, err = NewRepeatingTask("t", 0, func(context.Context) bool { return true }, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewRepeatingTask("t", -time.Second, func(context.Context) bool { return true }, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestRepeatingTask_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	task, err := NewRepeatingTask("t", 10*time.Millisecond, func(context.Context) bool {
		ticks.Add(1)
		return true
	}, nil)
	assert.NoError(t, err)

	task.Start(context.Background())
	assert.True(t, task.Running())

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	task.Stop()
	assert.False(t, task.Running())

	// No tick fires after Stop returns.
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
}

func TestRepeatingTask_StopIsIdempotent(t *testing.T) {
	task, err := NewRepeatingTask("t", 10*time.Millisecond, func(context.Context) bool { return true }, nil)
	assert.NoError(t, err)

	task.Stop() // never started

	task.Start(context.Background())
	task.Stop()
	task.Stop()
	assert.False(t, task.Running())
}

func TestRepeatingTask_RestartReplacesLoop(t *testing.T) {
	var ticks atomic.Int32
	task, err := NewRepeatingTask("t", 10*time.Millisecond, func(context.Context) bool {
		ticks.Add(1)
		return true
	}, nil)
	assert.NoError(t, err)

	// Start repeatedly; timers must not accumulate.
	task.Start(context.Background())
	task.Start(context.Background())
	task.Start(context.Background())
	assert.True(t, task.Running())

	time.Sleep(105 * time.Millisecond)
	task.Stop()

	// A single 10ms loop fires ~10 times in 105ms; three stacked loops
	// would fire ~30.
	assert.LessOrEqual(t, ticks.Load(), int32(15))
}

func TestRepeatingTask_TickReturningFalseRetiresLoop(t *testing.T) {
	var ticks atomic.Int32
	task, err := NewRepeatingTask("t", 10*time.Millisecond, func(context.Context) bool {
		return ticks.Add(1) < 2
	}, nil)
	assert.NoError(t, err)

	task.Start(context.Background())

	assert.Eventually(t, func() bool { return !task.Running() },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), ticks.Load())

	// Stop after self-retirement is a no-op, not a deadlock.
	task.Stop()
}

func TestRepeatingTask_ContextCancelStopsLoop(t *testing.T) {
	var ticks atomic.Int32
	task, err := NewRepeatingTask("t", 10*time.Millisecond, func(context.Context) bool {
		ticks.Add(1)
		return true
	}, nil)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	task.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !task.Running() },
		time.Second, 5*time.Millisecond)
}

func TestRepeatingTask_TicksDoNotOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	task, err := NewRepeatingTask("t", 5*time.Millisecond, func(context.Context) bool {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(20 * time.Millisecond) // slower than the interval
		inFlight.Add(-1)
		return true
	}, nil)
	assert.NoError(t, err)

	task.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	task.Stop()

	assert.False(t, overlapped.Load(), "a slow tick delays the next one, never overlaps it")
}
