package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/seantiz/taskflow/internal/model"
)

// Dispatcher performs a query against the capability backend and blocks
// until a terminal result is available, returning the response content.
type Dispatcher interface {
	Dispatch(ctx context.Context, q model.Query) (string, error)
}

// StepOutcome describes what happened to a step.
type StepOutcome string

// Step outcomes.
const (
	OutcomeSkipped  StepOutcome = "skipped"
	OutcomeExecuted StepOutcome = "executed"
	OutcomeIgnored  StepOutcome = "ignored"
	OutcomeFailed   StepOutcome = "failed"
)

// StepEvent reports the outcome of one step.
type StepEvent struct {
	Index   int
	Action  string
	Outcome StepOutcome
	Keys    []string
	Detail  string
}

func (e StepEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %d %s: %s", e.Index, e.Action, e.Outcome)
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, " (wrote %s)", strings.Join(e.Keys, ", "))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Executor runs one pipeline. Each call to Execute owns a fresh Context, so
// one Executor may serve concurrent executions of the same pipeline.
type Executor struct {
	pipeline   *model.Pipeline
	dispatcher Dispatcher
	logger     *slog.Logger
	observer   func(StepEvent)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithObserver registers fn to receive every StepEvent, synchronously and in
// step order.
func WithObserver(fn func(StepEvent)) ExecutorOption {
	return func(x *Executor) {
		x.observer = fn
	}
}

// NewExecutor creates an executor for p.
func NewExecutor(p *model.Pipeline, d Dispatcher, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	x := &Executor{
		pipeline:   p,
		dispatcher: d,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs every step in order, starting from a context holding input
// under "input", and returns the accumulated context. A dispatch failure
// stops the run; the context built so far is returned with the error.
func (x *Executor) Execute(ctx context.Context, input model.Value) (model.Context, error) {
	c := model.NewContext(input)
	x.logger.Debug("pipeline started", "pipeline", x.pipeline.Name, "steps", len(x.pipeline.Steps))

	for i, step := range x.pipeline.Steps {
		ev := StepEvent{Index: i + 1, Action: step.Action}

		if !Evaluate(c, step.If) {
			ev.Outcome = OutcomeSkipped
			x.emit(ev)
			continue
		}

		switch step.Action {
		case model.ActionQuery:
			keys, detail, err := x.runQuery(ctx, c, step)
			if err != nil {
				ev.Outcome = OutcomeFailed
				ev.Detail = err.Error()
				x.emit(ev)
				return c, fmt.Errorf("step %d: %w", ev.Index, err)
			}
			ev.Outcome = OutcomeExecuted
			ev.Keys = keys
			ev.Detail = detail
		default:
			x.logger.Warn("unknown step action", "pipeline", x.pipeline.Name, "step", ev.Index, "action", step.Action)
			ev.Outcome = OutcomeIgnored
			ev.Detail = "unknown action"
		}
		x.emit(ev)
	}

	x.logger.Debug("pipeline finished", "pipeline", x.pipeline.Name, "keys", len(c))
	return c, nil
}

// runQuery resolves the step prompts, dispatches them and merges extracted
// values into c. It returns the keys written.
func (x *Executor) runQuery(ctx context.Context, c model.Context, step model.Step) ([]string, string, error) {
	if step.Message == nil {
		return nil, "no message", nil
	}

	q := model.Query{
		Model:  step.Model,
		Lang:   step.Lang,
		JSON:   step.JSON,
		System: Substitute(c, step.Message.System),
		User:   Substitute(c, step.Message.User),
	}
	content, err := x.dispatcher.Dispatch(ctx, q)
	if err != nil {
		return nil, "", err
	}

	if len(step.Extract) == 0 {
		return nil, "", nil
	}

	updates, err := Extract(content, step.Extract, step.JSON)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			extractionFailuresTotal.Inc()
			x.logger.Warn("extraction skipped", "pipeline", x.pipeline.Name, "error", err)
			return nil, "extraction skipped", nil
		}
		return nil, "", err
	}
	c.Merge(updates)

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, "", nil
}

func (x *Executor) emit(ev StepEvent) {
	stepsTotal.WithLabelValues(string(ev.Outcome)).Inc()
	if x.observer != nil {
		x.observer(ev)
	}
}
