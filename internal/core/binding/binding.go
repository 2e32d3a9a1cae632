// Package binding holds the capability interfaces through which the behavior
// tree engine reads and writes agent state.
//
// Configuration strings are resolved into accessors exactly once, when a tree is
// loaded. The engine never looks names up while ticking: it only holds the
// resolved Value, Property and Method handles produced by a Resolver.
package binding

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolved is returned by a Resolver for names it cannot bind.
	ErrUnresolved = errors.New("binding: unresolved name")
	// ErrType is returned when a bound value does not have the expected type.
	ErrType = errors.New("binding: unexpected value type")
	// ErrUnsupportedAgent is returned when an accessor is used with an agent
	// that does not expose the capability it needs.
	ErrUnsupportedAgent = errors.New("binding: unsupported agent")
)

// Agent is the host handle the engine passes to every accessor.
type Agent interface {
	// ID returns a stable identifier, unique among bound agents.
	ID() string
}

// Value is a configuration value bound at load time and read per agent.
type Value interface {
	Get(a Agent) (any, error)
}

// Property is a named, settable agent member.
type Property interface {
	Value
	Set(a Agent, v any) error
	Name() string
}

// Method is a named agent operation.
type Method interface {
	Call(a Agent, args ...any) (any, error)
	Name() string
}

// Resolver turns configuration names into accessors.
type Resolver interface {
	Property(name string) (Property, error)
	Method(name string) (Method, error)
}

// Snapshotter exposes the readable state of an agent as a flat map, used as
// the environment of expression programs.
type Snapshotter interface {
	Snapshot(a Agent) (map[string]any, error)
}

type constValue struct{ v any }

func (c constValue) Get(Agent) (any, error) { return c.v, nil }

func (c constValue) String() string { return fmt.Sprintf("const(%v)", c.v) }

// Const returns a Value that always yields v.
func Const(v any) Value { return constValue{v: v} }

// IsConst reports whether v was built with Const.
func IsConst(v Value) bool {
	_, ok := v.(constValue)
	return ok
}

type callValue struct {
	m    Method
	args []Value
}

func (c callValue) Get(a Agent) (any, error) {
	args := make([]any, len(c.args))
	for i, av := range c.args {
		v, err := av.Get(a)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", c.m.Name(), i, err)
		}
		args[i] = v
	}
	return c.m.Call(a, args...)
}

// Call returns a Value that invokes m with args, each arg read per call.
func Call(m Method, args ...Value) Value {
	return callValue{m: m, args: args}
}

// ValueFunc adapts a function to Value.
type ValueFunc func(a Agent) (any, error)

func (f ValueFunc) Get(a Agent) (any, error) { return f(a) }

// Int reads v for a and converts it to int.
func Int(v Value, a Agent) (int, error) {
	raw, err := v.Get(a)
	if err != nil {
		return 0, err
	}
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case float32:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: want int, got %T", ErrType, raw)
	}
}

// Bool reads v for a and converts it to bool.
func Bool(v Value, a Agent) (bool, error) {
	raw, err := v.Get(a)
	if err != nil {
		return false, err
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: want bool, got %T", ErrType, raw)
	}
	return b, nil
}

// Float reads v for a and converts it to float64.
func Float(v Value, a Agent) (float64, error) {
	raw, err := v.Get(a)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(raw)
	if !ok {
		return 0, fmt.Errorf("%w: want number, got %T", ErrType, raw)
	}
	return f, nil
}
