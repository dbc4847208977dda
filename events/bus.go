package events

import (
	"sync"
	"time"
)

type Topic string

const (
	// TopicSessionChanged fires after a session record is written
	TopicSessionChanged Topic = "session.changed"
	// TopicSessionCleared fires after a session record is removed (logout, expiry, corruption)
	TopicSessionCleared Topic = "session.cleared"
)

type Event struct {
	Topic     Topic
	SessionID string
	At        time.Time
}

type Handler func(Event)

// Publisher is the side of the bus handed to components that only emit events.
type Publisher interface {
	Publish(e Event)
}

// Bus is an in-process, synchronous event bus. Handlers run on the publishing goroutine
// in subscription order and must not publish on the same topic.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Topic]map[int]Handler
	order    map[Topic][]int
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Topic]map[int]Handler),
		order:    make(map[Topic][]int),
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if _, ok := b.handlers[topic]; !ok {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.handlers[topic][id] = h
	b.order[topic] = append(b.order[topic], id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
		ids := b.order[topic]
		for i, v := range ids {
			if v == id {
				b.order[topic] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order[e.Topic]))
	for _, id := range b.order[e.Topic] {
		handlers = append(handlers, b.handlers[e.Topic][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
