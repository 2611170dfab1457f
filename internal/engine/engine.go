package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

// Loader resolves a pipeline by name into a validated Pipeline.
type Loader interface {
	Load(ctx context.Context, name string) (*model.Pipeline, error)
}

// Engine runs named pipelines and records each run as an Execution.
type Engine struct {
	loader     Loader
	store      store.ExecutionStore
	dispatcher Dispatcher
	logger     *slog.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
	broker     *EventBroker
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutionTimeout bounds executions started by Submit. Zero, the
// default, lets them run until the backend reaches a terminal status.
func WithExecutionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// NewEngine creates a new execution engine.
func NewEngine(l Loader, s store.ExecutionStore, d Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		loader:     l,
		store:      s,
		dispatcher: d,
		logger:     logger,
		broker:     NewEventBroker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Run executes the named pipeline and blocks until it finishes. The returned
// execution carries the final context. Configuration errors wrap
// ErrConfiguration and happen before any record is written; a failed run
// returns both the failed execution and the cause.
func (e *Engine) Run(ctx context.Context, name string, input model.Value) (*model.Execution, error) {
	p, err := e.load(ctx, name)
	if err != nil {
		return nil, err
	}

	x := newExecution(name, input)
	if err := e.store.CreateExecution(ctx, x); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	return e.execute(ctx, p, x)
}

// Submit records a pending execution of the named pipeline and runs it in a
// goroutine. The run is detached from ctx: it continues after the caller
// returns.
func (e *Engine) Submit(ctx context.Context, name string, input model.Value) (*model.Execution, error) {
	p, err := e.load(ctx, name)
	if err != nil {
		return nil, err
	}

	x := newExecution(name, input)
	if err := e.store.CreateExecution(ctx, x); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	xCopy := *x
	e.wg.Go(func() {
		runCtx := context.Background()
		if e.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, e.timeout)
			defer cancel()
		}
		if _, err := e.execute(runCtx, p, &xCopy); err != nil {
			e.logger.Warn("execution failed", "execution_id", xCopy.ID, "pipeline", name, "error", err)
		}
	})

	return x, nil
}

// Wait blocks until all executions started by Submit complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) load(ctx context.Context, name string) (*model.Pipeline, error) {
	p, err := e.loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline %q: %w", ErrConfiguration, name, err)
	}
	return p, nil
}

func newExecution(name string, input model.Value) *model.Execution {
	return &model.Execution{
		ID:        model.NewID(),
		Pipeline:  name,
		Status:    model.StatusPending,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
}

// execute drives an execution through running to completed or failed.
// Records are written with a context detached from ctx cancellation so that
// an abandoned request still leaves a finished record behind.
func (e *Engine) execute(ctx context.Context, p *model.Pipeline, x *model.Execution) (*model.Execution, error) {
	defer e.broker.Close(x.ID)
	recordCtx := context.WithoutCancel(ctx)
	logger := e.logger.With("execution_id", x.ID, "pipeline", x.Pipeline)

	if err := e.store.UpdateExecutionStatus(recordCtx, x.ID, model.StatusRunning); err != nil {
		logger.Error("failed to transition to running", "error", err)
		return e.finish(recordCtx, x, nil, nil, fmt.Errorf("start execution: %w", err))
	}

	start := time.Now().UTC()
	seq := 0
	observe := func(ev StepEvent) {
		line := model.EventLine{
			ExecutionID: x.ID,
			Seq:         seq,
			Line:        ev.String(),
			CreatedAt:   time.Now().UTC(),
		}
		seq++
		if err := e.store.InsertEventLine(recordCtx, x.ID, line.Seq, line.Line); err != nil {
			logger.Error("failed to persist event line", "seq", line.Seq, "error", err)
		}
		e.broker.Publish(line)
	}

	exec := NewExecutor(p, e.dispatcher, logger, WithObserver(observe))
	result, err := exec.Execute(ctx, x.Input)
	return e.finish(recordCtx, x, &start, result, err)
}

// finish writes the terminal state of x and returns it with runErr.
func (e *Engine) finish(ctx context.Context, x *model.Execution, startedAt *time.Time, result model.Context, runErr error) (*model.Execution, error) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(now.Sub(*startedAt).Milliseconds())
	}

	done := *x
	done.Result = result
	done.DurationMS = &durationMS
	done.StartedAt = startedAt
	done.FinishedAt = &now
	done.Status = model.StatusCompleted
	if runErr != nil {
		done.Status = model.StatusFailed
		done.Error = runErr.Error()
	}

	if err := e.store.UpdateExecution(ctx, &done); err != nil {
		e.logger.Error("failed to update finished execution", "execution_id", x.ID, "error", err)
	}

	executionsTotal.WithLabelValues(x.Pipeline, done.Status).Inc()
	if startedAt != nil {
		executionDuration.WithLabelValues(x.Pipeline).Observe(now.Sub(*startedAt).Seconds())
	}
	return &done, runErr
}
