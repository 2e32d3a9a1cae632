package bt

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind     = errors.New("bt: unknown node kind")
	ErrChildCount      = errors.New("bt: invalid child count")
	ErrInvalidChild    = errors.New("bt: invalid child kind")
	ErrInvalidConfig   = errors.New("bt: invalid node configuration")
	ErrDuplicateNode   = errors.New("bt: duplicate node id")
	ErrNoPlanner       = errors.New("bt: htn task without planner factory")
	ErrUnknownTree     = errors.New("bt: unknown tree")
	ErrTreeExists      = errors.New("bt: tree already loaded")
	ErrCorruptedTree   = errors.New("bt: corrupted task tree")
	ErrUnbound         = errors.New("bt: task tree is unbound")
	ErrNotCondition    = errors.New("bt: node is not a condition")
	ErrEmptyDefinition = errors.New("bt: definition has no root")
)

// ConfigError is a load-time diagnostic attached to one node of one tree.
type ConfigError struct {
	Tree string
	Node string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("tree %q: %v", e.Tree, e.Err)
	}
	return fmt.Sprintf("tree %q node %q: %v", e.Tree, e.Node, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TickError is a fatal diagnostic raised while ticking. It poisons the task
// tree it came from.
type TickError struct {
	Tree  string
	Agent string
	Node  string
	Err   error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick tree %q agent %q node %q: %v", e.Tree, e.Agent, e.Node, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }
