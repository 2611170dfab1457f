package engine

import (
	"sync"

	"github.com/seantiz/taskflow/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// EventBroker fans execution progress events out to live subscribers.
// It is safe for concurrent use.
//
// Closed topics are kept as markers so a subscriber that arrives after an
// execution finished receives a closed channel instead of blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.EventLine
	nextID int
	closed bool
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel receiving events of the given execution and an
// unsubscribe function. If the execution already finished the channel is
// closed immediately.
func (b *EventBroker) Subscribe(executionID string) (<-chan model.EventLine, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.EventLine)}
		b.topics[executionID] = t
	}

	ch := make(chan model.EventLine, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish delivers ev to all subscribers of its execution, dropping it for
// subscribers whose buffers are full.
func (b *EventBroker) Publish(ev model.EventLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.ExecutionID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the stream of an execution: subscriber channels are closed and
// later Subscribe calls get a closed channel.
func (b *EventBroker) Close(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		b.topics[executionID] = &eventTopic{subs: make(map[int]chan model.EventLine), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
