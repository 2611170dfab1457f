package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/taskflow/internal/engine"
	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

// mapLoader serves pipelines from memory.
type mapLoader map[string]*model.Pipeline

func (m mapLoader) Load(_ context.Context, name string) (*model.Pipeline, error) {
	p, ok := m[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func newTestEngine(t *testing.T, d engine.Dispatcher, opts ...engine.Option) (*engine.Engine, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	loader := mapLoader{"score": scorePipeline()}
	eng := engine.NewEngine(loader, s, d, testLogger(), opts...)
	t.Cleanup(eng.Wait)
	return eng, s
}

// waitForStatus polls the store until the execution reaches the expected status.
func waitForStatus(t *testing.T, s store.Store, id, expected string, timeout time.Duration) *model.Execution {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		x, err := s.GetExecution(context.Background(), id)
		if err != nil {
			t.Fatalf("GetExecution: %v", err)
		}
		if x.Status == expected {
			return x
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("execution %s did not reach status %q within %v", id, expected, timeout)
	return nil
}

func scoreDispatcher(first string) *stubDispatcher {
	return &stubDispatcher{reply: func(q model.Query) (string, error) {
		if q.System == "grade" {
			return first, nil
		}
		return "summary", nil
	}}
}

func TestRunCompletes(t *testing.T) {
	eng, s := newTestEngine(t, scoreDispatcher(`{"score":0.9,"flag":true}`))

	x, err := eng.Run(context.Background(), "score", str("doc"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if x.Status != model.StatusCompleted {
		t.Errorf("status = %q", x.Status)
	}
	if s, _ := x.Result["summary"].AsString(); s != "summary" {
		t.Errorf("summary = %v", x.Result["summary"])
	}

	stored, err := s.GetExecution(context.Background(), x.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if stored.Status != model.StatusCompleted || stored.StartedAt == nil || stored.FinishedAt == nil || stored.DurationMS == nil {
		t.Errorf("stored = %+v", stored)
	}
	if n, _ := stored.Result["score"].AsNumber(); n != 0.9 {
		t.Errorf("stored score = %v", stored.Result["score"])
	}

	lines, err := s.GetEventLines(context.Background(), x.ID)
	if err != nil {
		t.Fatalf("GetEventLines: %v", err)
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[0].Line, "step 1 query: executed") {
		t.Errorf("event lines = %+v", lines)
	}
}

func TestRunUnknownPipeline(t *testing.T) {
	eng, s := newTestEngine(t, replyWith("x"))

	_, err := eng.Run(context.Background(), "nope", model.Null())
	if !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want it to wrap ErrNotFound", err)
	}
	_, total, err := s.ListExecutions(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 0 {
		t.Errorf("executions recorded = %d, want 0", total)
	}
}

func TestRunDispatchFailure(t *testing.T) {
	boom := errors.New("backend rejected")
	eng, s := newTestEngine(t, &stubDispatcher{reply: func(model.Query) (string, error) { return "", boom }})

	x, err := eng.Run(context.Background(), "score", str("doc"))
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if x == nil || x.Status != model.StatusFailed {
		t.Fatalf("execution = %+v", x)
	}
	stored, _ := s.GetExecution(context.Background(), x.ID)
	if stored.Status != model.StatusFailed || !strings.Contains(stored.Error, "backend rejected") {
		t.Errorf("stored = %+v", stored)
	}
}

func TestSubmitHappyPath(t *testing.T) {
	release := make(chan struct{})
	d := &stubDispatcher{reply: func(model.Query) (string, error) {
		<-release
		return `{"score":0.1,"flag":false}`, nil
	}}
	eng, s := newTestEngine(t, d)

	x, err := eng.Submit(context.Background(), "score", str("doc"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if x.Status != model.StatusPending {
		t.Errorf("initial status = %q, want pending", x.Status)
	}

	waitForStatus(t, s, x.ID, model.StatusRunning, 5*time.Second)
	close(release)

	done := waitForStatus(t, s, x.ID, model.StatusCompleted, 5*time.Second)
	if _, ok := done.Result["summary"]; ok {
		t.Error("gated step ran on a low score")
	}
}

func TestSubmitTimeout(t *testing.T) {
	eng, s := newTestEngine(t, ctxDispatcher{}, engine.WithExecutionTimeout(50*time.Millisecond))

	x, err := eng.Submit(context.Background(), "score", model.Null())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	failed := waitForStatus(t, s, x.ID, model.StatusFailed, 5*time.Second)
	if !strings.Contains(failed.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("error = %q, want deadline exceeded", failed.Error)
	}
}

// ctxDispatcher blocks until the context ends.
type ctxDispatcher struct{}

func (ctxDispatcher) Dispatch(ctx context.Context, _ model.Query) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSubmitStreamsEvents(t *testing.T) {
	release := make(chan struct{})
	d := &stubDispatcher{reply: func(q model.Query) (string, error) {
		<-release
		if q.System == "grade" {
			return `{"score":0.9,"flag":true}`, nil
		}
		return "summary", nil
	}}
	eng, _ := newTestEngine(t, d)

	x, err := eng.Submit(context.Background(), "score", str("doc"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ch, unsub := eng.Broker().Subscribe(x.ID)
	defer unsub()
	close(release)

	var lines []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				if len(lines) != 2 {
					t.Errorf("lines = %v, want 2", lines)
				}
				return
			}
			lines = append(lines, ev.Line)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSubmitConcurrent(t *testing.T) {
	eng, s := newTestEngine(t, scoreDispatcher(`{"score":0.8,"flag":true}`))

	ids := make([]string, 5)
	for i := range ids {
		x, err := eng.Submit(context.Background(), "score", model.Null())
		if err != nil {
			t.Fatalf("Submit[%d]: %v", i, err)
		}
		ids[i] = x.ID
	}
	for _, id := range ids {
		waitForStatus(t, s, id, model.StatusCompleted, 5*time.Second)
	}
}
