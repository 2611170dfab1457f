package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPollInterval is the pause between two polls of the same task.
const DefaultPollInterval = 5 * time.Second

// ErrPollBudgetExhausted is returned when a Waiter gives up on a task that
// has not reached a terminal status.
var ErrPollBudgetExhausted = errors.New("poll budget exhausted")

// Waiter polls tasks until they reach a terminal status. Transient poll
// failures are logged and retried. By default a Waiter never gives up; the
// caller's context or the options below bound it.
type Waiter struct {
	poller      TaskPoller
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
	maxDuration time.Duration
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithPollInterval sets the pause between polls.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.interval = d
	}
}

// WithMaxAttempts caps the number of polls per task. Zero means no cap.
func WithMaxAttempts(n int) WaiterOption {
	return func(w *Waiter) {
		w.maxAttempts = n
	}
}

// WithMaxDuration caps the time spent waiting for one task. Zero means no cap.
func WithMaxDuration(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.maxDuration = d
	}
}

// NewWaiter creates a waiter polling through p.
func NewWaiter(p TaskPoller, logger *slog.Logger, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		poller:   p,
		logger:   logger,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait polls the task until its status is terminal and returns that poll
// response unmodified. The first poll is sent immediately.
func (w *Waiter) Wait(ctx context.Context, capability, taskID string) (*TaskResult, error) {
	start := time.Now()
	logger := w.logger.With("task_id", taskID, "capability", capability)

	for attempt := 1; ; attempt++ {
		res, err := w.poller.PollTask(ctx, capability, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("poll task %s: %w", taskID, ctx.Err())
			}
			pollsTotal.WithLabelValues("error").Inc()
			logger.Warn("poll failed", "attempt", attempt, "error", err)
		case res.Status == "":
			pollsTotal.WithLabelValues("malformed").Inc()
			logger.Warn("poll response has no status", "attempt", attempt)
		case IsTerminalStatus(res.Status):
			pollsTotal.WithLabelValues("terminal").Inc()
			taskWaitSeconds.Observe(time.Since(start).Seconds())
			logger.Debug("task finished", "status", res.Status, "attempts", attempt)
			return res, nil
		default:
			pollsTotal.WithLabelValues("pending").Inc()
			logger.Debug("task pending", "status", res.Status, "attempt", attempt)
		}

		if w.maxAttempts > 0 && attempt >= w.maxAttempts {
			return nil, fmt.Errorf("%w: task %s after %d attempts", ErrPollBudgetExhausted, taskID, attempt)
		}
		if w.maxDuration > 0 && time.Since(start) >= w.maxDuration {
			return nil, fmt.Errorf("%w: task %s after %s", ErrPollBudgetExhausted, taskID, w.maxDuration)
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("poll task %s: %w", taskID, ctx.Err())
		case <-timer.C:
		}
	}
}
