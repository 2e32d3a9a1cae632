package binding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// BlackboardAgent is an agent whose properties live in a Blackboard.
type BlackboardAgent interface {
	Agent
	Blackboard() *Blackboard
}

// BasicAgent is a minimal BlackboardAgent for hosts without their own agent type.
type BasicAgent struct {
	id string
	bb *Blackboard
}

// NewAgent creates a BasicAgent. An empty id is replaced with a random UUID.
func NewAgent(id string) *BasicAgent {
	if id == "" {
		id = uuid.NewString()
	}
	return &BasicAgent{id: id, bb: NewBlackboard()}
}

func (a *BasicAgent) ID() string              { return a.id }
func (a *BasicAgent) Blackboard() *Blackboard { return a.bb }

// MethodFunc is the signature of methods registered in a Methods table.
type MethodFunc func(a Agent, args ...any) (any, error)

type namedMethod struct {
	name string
	fn   MethodFunc
}

func (m namedMethod) Name() string { return m.name }

func (m namedMethod) Call(a Agent, args ...any) (any, error) { return m.fn(a, args...) }

type blackboardProperty struct{ name string }

func (p blackboardProperty) Name() string { return p.name }

func (p blackboardProperty) Get(a Agent) (any, error) {
	ba, ok := a.(BlackboardAgent)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no blackboard", ErrUnsupportedAgent, a)
	}
	v, _ := ba.Blackboard().Get(p.name)
	return v, nil
}

func (p blackboardProperty) Set(a Agent, v any) error {
	ba, ok := a.(BlackboardAgent)
	if !ok {
		return fmt.Errorf("%w: %T has no blackboard", ErrUnsupportedAgent, a)
	}
	ba.Blackboard().Set(p.name, v)
	return nil
}

// BlackboardResolver binds properties to blackboard keys and methods to a
// registered function table. Method registration must finish before trees are
// loaded; resolution itself is safe for concurrent use.
type BlackboardResolver struct {
	mu      sync.RWMutex
	methods map[string]MethodFunc
}

var (
	_ Resolver    = (*BlackboardResolver)(nil)
	_ Snapshotter = (*BlackboardResolver)(nil)
)

// NewBlackboardResolver returns a resolver with no methods registered.
func NewBlackboardResolver() *BlackboardResolver {
	return &BlackboardResolver{methods: make(map[string]MethodFunc)}
}

// RegisterMethod adds or replaces a method.
func (r *BlackboardResolver) RegisterMethod(name string, fn MethodFunc) {
	r.mu.Lock()
	r.methods[name] = fn
	r.mu.Unlock()
}

// Methods lists the registered method names.
func (r *BlackboardResolver) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *BlackboardResolver) Property(name string) (Property, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty property name", ErrUnresolved)
	}
	return blackboardProperty{name: name}, nil
}

func (r *BlackboardResolver) Method(name string) (Method, error) {
	r.mu.RLock()
	fn := r.methods[name]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: method %q", ErrUnresolved, name)
	}
	return namedMethod{name: name, fn: fn}, nil
}

func (r *BlackboardResolver) Snapshot(a Agent) (map[string]any, error) {
	ba, ok := a.(BlackboardAgent)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no blackboard", ErrUnsupportedAgent, a)
	}
	return ba.Blackboard().Snapshot(), nil
}
