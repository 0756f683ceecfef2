package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a message published on a topic.
type Event struct {
	Topic  string
	Source string
	At     time.Time
	Data   any
}

// Handler consumes events. Handlers run synchronously in the publisher's
// goroutine and must not block for long.
type Handler func(Event)

// Subscription identifies one registered handler and can cancel it.
type Subscription struct {
	id     string
	topic  string
	cancel func()
}

func (s *Subscription) ID() string    { return s.id }
func (s *Subscription) Topic() string { return s.topic }

func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Bus is a process-local topic bus. It backs the radio behaviour and any
// other capability that wants cross-entity fan-out; the actor kernel itself
// never depends on it.
type Bus struct {
	mu sync.RWMutex
	// topic -> subscription id -> handler
	handlers  map[string]map[string]Handler
	published uint64
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string]map[string]Handler),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[string]Handler)
	}
	id := uuid.NewString()
	b.handlers[topic][id] = h

	return &Subscription{
		id:    id,
		topic: topic,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if hs, ok := b.handlers[topic]; ok {
				delete(hs, id)
				if len(hs) == 0 {
					delete(b.handlers, topic)
				}
			}
		},
	}
}

// Publish delivers the event to every handler subscribed to the topic and
// returns the number of handlers reached.
func (b *Bus) Publish(topic, source string, data any) int {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Source: source, At: time.Now(), Data: data}
	for _, h := range hs {
		h(ev)
	}

	b.mu.Lock()
	b.published++
	b.mu.Unlock()

	return len(hs)
}

// Topics lists topics that currently have at least one subscriber.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		out = append(out, topic)
	}
	return out
}

// Published returns the total number of publish calls.
func (b *Bus) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}
