package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seantiz/taskflow/internal/model"
)

// Dispatcher sends a query to the backend and waits for its answer: pick a
// capability, submit the task, poll it to a terminal status.
type Dispatcher struct {
	picker    Picker
	submitter TaskSubmitter
	waiter    *Waiter
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(p Picker, s TaskSubmitter, w *Waiter, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		picker:    p,
		submitter: s,
		waiter:    w,
		logger:    logger,
	}
}

// Dispatch returns the content of the task's output message. A task that
// ends failed or canceled is not an error: its content, usually empty, is
// returned and the status is logged.
func (d *Dispatcher) Dispatch(ctx context.Context, q model.Query) (string, error) {
	capability, err := d.picker.Pick(ctx, q.Model, q.Lang)
	if err != nil {
		return "", err
	}

	handle, err := d.submitter.SubmitTask(ctx, NewTaskRequest(capability, q))
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	d.logger.Debug("task submitted", "task_id", handle.ID, "capability", handle.Capability)

	res, err := d.waiter.Wait(ctx, handle.Capability, handle.ID)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(res.Status, StatusCompleted) {
		d.logger.Warn("task did not complete", "task_id", handle.ID, "status", res.Status)
	}
	return res.Content(), nil
}
