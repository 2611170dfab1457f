package engine_test

import (
	"testing"

	"github.com/seantiz/taskflow/internal/engine"
	"github.com/seantiz/taskflow/internal/model"
)

func event(id string, seq int, line string) model.EventLine {
	return model.EventLine{ExecutionID: id, Seq: seq, Line: line}
}

func TestEventBrokerDeliversInOrder(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	lines := []string{"step 1 query: executed", "step 2 query: skipped", "step 3 notify: ignored"}
	for i, l := range lines {
		b.Publish(event("e1", i, l))
	}
	b.Close("e1")

	var got []model.EventLine
	for ev := range ch {
		got = append(got, ev)
	}

	if len(got) != len(lines) {
		t.Fatalf("got %d events, want %d", len(got), len(lines))
	}
	for i, ev := range got {
		if ev.Line != lines[i] || ev.Seq != i {
			t.Errorf("event[%d] = %+v, want seq %d line %q", i, ev, i, lines[i])
		}
	}
}

func TestEventBrokerIsolatesExecutions(t *testing.T) {
	b := engine.NewEventBroker()
	ch1, unsub1 := b.Subscribe("e1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("e2")
	defer unsub2()

	b.Publish(event("e1", 0, "only e1"))
	b.Close("e1")
	b.Close("e2")

	var got1, got2 []model.EventLine
	for ev := range ch1 {
		got1 = append(got1, ev)
	}
	for ev := range ch2 {
		got2 = append(got2, ev)
	}

	if len(got1) != 1 || got1[0].Line != "only e1" {
		t.Errorf("e1 subscriber got %v", got1)
	}
	if len(got2) != 0 {
		t.Errorf("e2 subscriber got %v, want nothing", got2)
	}
}

func TestEventBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewEventBroker()
	b.Publish(event("e1", 0, "early"))
	b.Close("e1")

	ch, unsub := b.Subscribe("e1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber channel should be closed")
	}
}

func TestEventBrokerDropsForSlowSubscriber(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	for i := 0; i < 200; i++ {
		b.Publish(event("e1", i, "flood"))
	}
	b.Close("e1")

	n := 0
	for range ch {
		n++
	}
	if n != 64 {
		t.Errorf("received %d events, want buffer size 64", n)
	}
}

func TestEventBrokerUnsubscribe(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	unsub()

	b.Publish(event("e1", 0, "after unsubscribe"))
	select {
	case ev := <-ch:
		t.Errorf("received %+v after unsubscribe", ev)
	default:
	}
	b.Close("e1")
}
