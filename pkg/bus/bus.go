package bus

import (
	"sync"
	"time"

	"chatrelay/pkg/models"
)

// Event is a thread-scoped change notification delivered to subscribed
// counter-parties.
type Event struct {
	Kind     string          `json:"kind"` // message | edit | delete | read | presence
	Thread   string          `json:"thread"`
	TS       int64           `json:"ts"`
	Message  *models.Message `json:"message,omitempty"`
	Online   *bool           `json:"online,omitempty"`
}

// Bus is an in-process publish/subscribe fan-out keyed by thread id. The
// relay's correctness does not depend on delivery; an external broker can
// replace this behind the same shape for multi-instance deployments.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	thread string
	ch     chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish sends an event to all subscribers of its thread. Slow
// subscribers drop events rather than block the publisher.
func (b *Bus) Publish(evt Event) {
	if evt.TS == 0 {
		evt.TS = time.Now().UTC().UnixNano()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.thread != evt.Thread {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel receiving events for the given thread and an
// unsubscribe function. bufSize controls the channel buffer.
func (b *Bus) Subscribe(threadID string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{thread: threadID, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
