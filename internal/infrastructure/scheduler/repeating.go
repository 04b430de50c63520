// Package scheduler implements background task scheduling for the dashboard
// client. Its main consumer is the session heartbeat: a fixed-interval
// re-validation task that must never overlap its own ticks and must be
// cancellable synchronously and idempotently.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilTask is returned when no task function is provided.
	ErrNilTask = errors.New("scheduler: task function cannot be nil")

	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// REPEATING TASK
// ══════════════════════════════════════════════════════════════════════════════

// TaskFunc is the function executed on every tick. Each invocation runs to
// full completion before the next tick is scheduled; ticks never overlap.
// Returning false retires the loop from inside the tick - this is how the
// heartbeat stops itself when it detects an invalid session, without having
// to call Stop from its own goroutine.
type TaskFunc func(ctx context.Context) bool

// RepeatingTask runs a function at a fixed interval until stopped.
//
// Start is idempotent in the sense the session heartbeat needs: calling it
// while a loop is already running retires the old loop before installing the
// new one, so repeated calls never accumulate concurrent timers. Stop is a
// synchronous, idempotent cancellation - stopping twice is a no-op, and no
// new tick fires after Stop returns.
type RepeatingTask struct {
	name     string
	interval time.Duration
	task     TaskFunc
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRepeatingTask creates a new RepeatingTask.
func NewRepeatingTask(name string, interval time.Duration, task TaskFunc, logger *slog.Logger) (*RepeatingTask, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RepeatingTask{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}, nil
}

// Start begins the repeating loop. Any previously running loop is stopped
// first.
func (t *RepeatingTask) Start(ctx context.Context) {
	t.Stop()

	t.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	t.logger.Debug("repeating task started", "task", t.name, "interval", t.interval)

	go t.loop(loopCtx, done)
}

// Stop cancels the loop and waits for it to exit. Safe to call at any time,
// any number of times. Must not be called from inside the task itself; the
// task retires the loop by returning false instead.
func (t *RepeatingTask) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	t.logger.Debug("repeating task stopped", "task", t.name)
}

// Running reports whether a loop is currently installed.
func (t *RepeatingTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// loop drives the ticks. The task runs synchronously inside the loop, so a
// slow tick delays the next one rather than overlapping it.
func (t *RepeatingTask) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.clear(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}

			started := time.Now()
			keepGoing := t.task(ctx)
			t.logger.Debug("tick completed",
				"task", t.name,
				"duration", time.Since(started),
			)

			if !keepGoing {
				t.logger.Debug("repeating task retired by tick", "task", t.name)
				return
			}
		}
	}
}

// clear releases the slot if this loop is still the installed one, so a
// self-retired loop leaves Running() false and a later Stop is a no-op.
func (t *RepeatingTask) clear(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == done {
		if t.cancel != nil {
			t.cancel()
		}
		t.cancel = nil
		t.done = nil
	}
}
