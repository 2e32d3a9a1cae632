// Package bus is a small in-process pub/sub bus for host lifecycle events.
// Delivery is synchronous on the publisher's goroutine; handlers must be quick.
package bus

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the host.
const (
	AgentBound   = "agent.bound"
	AgentUnbound = "agent.unbound"
	AgentFailed  = "agent.failed"
	TreeUnloaded = "tree.unloaded"
)

// Any subscribes to every event type.
const Any = "*"

// Event is an immutable lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Tree      string    `json:"tree,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(typ, agent, tree string, data any) Event {
	return Event{Type: typ, Agent: agent, Tree: tree, Timestamp: time.Now(), Data: data}
}

type Handler func(Event) error

// Subscription is a registered handler. Cancel is idempotent.
type Subscription struct {
	id        string
	eventType string
	bus       *Bus
}

func (s *Subscription) ID() string        { return s.id }
func (s *Subscription) EventType() string { return s.eventType }

func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.handlers[s.eventType], s.id)
	s.bus.mu.Unlock()
}

type entry struct {
	seq     uint64
	handler Handler
}

// Bus is safe for concurrent use. The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]entry
	seq      uint64
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[string]entry)}
}

// Subscribe registers handler for eventType, or for everything with Any.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]entry)
	}
	b.seq++
	s := &Subscription{id: uuid.NewString(), eventType: eventType, bus: b}
	b.handlers[eventType][s.id] = entry{seq: b.seq, handler: handler}
	return s
}

// Publish calls every matching handler in subscription order and joins their
// errors.
func (b *Bus) Publish(e Event) error {
	b.mu.RLock()
	entries := make([]entry, 0, len(b.handlers[e.Type])+len(b.handlers[Any]))
	for _, en := range b.handlers[e.Type] {
		entries = append(entries, en)
	}
	if e.Type != Any {
		for _, en := range b.handlers[Any] {
			entries = append(entries, en)
		}
	}
	b.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	var errs []error
	for _, en := range entries {
		if err := en.handler(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribers counts the handlers registered for eventType.
func (b *Bus) Subscribers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
