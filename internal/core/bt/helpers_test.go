package bt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
)

// fixture wires a workspace to a blackboard resolver whose "run" method
// records every call and answers with the blackboard value "result.<name>"
// (Success when unset).
type fixture struct {
	t     *testing.T
	r     *binding.BlackboardResolver
	ws    *Workspace
	agent *binding.BasicAgent
	calls []string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{t: t, r: binding.NewBlackboardResolver(), agent: binding.NewAgent("agent-1")}
	f.r.RegisterMethod("run", func(a binding.Agent, args ...any) (any, error) {
		name := args[0].(string)
		f.calls = append(f.calls, name)
		v, ok := a.(binding.BlackboardAgent).Blackboard().Get("result." + name)
		if !ok {
			return StatusSuccess, nil
		}
		return v, nil
	})
	f.ws = NewWorkspace(f.r, append([]Option{WithSeed(7)}, opts...)...)
	return f
}

func (f *fixture) set(key string, v any) { f.agent.Blackboard().Set(key, v) }

func (f *fixture) result(name string, st Status) { f.set("result."+name, st) }

func (f *fixture) bind(root *NodeSpec) *TaskTree {
	f.t.Helper()
	_, err := f.ws.Load(&Definition{ID: f.t.Name(), Root: root})
	require.NoError(f.t, err)
	tt, err := f.ws.Bind(f.agent, f.t.Name())
	require.NoError(f.t, err)
	f.t.Cleanup(tt.Unbind)
	return tt
}

func (f *fixture) tick(tt *TaskTree) Status {
	f.t.Helper()
	st, err := tt.Tick()
	require.NoError(f.t, err)
	return st
}

func (f *fixture) reset() { f.calls = nil }

func node(kind string, children ...*NodeSpec) *NodeSpec {
	return &NodeSpec{Kind: kind, Children: children}
}

func named(id, kind string, props map[string]any, children ...*NodeSpec) *NodeSpec {
	return &NodeSpec{ID: id, Kind: kind, Props: props, Children: children}
}

func act(name string) *NodeSpec {
	return named(name, "action", map[string]any{"method": "run", "args": []any{name}})
}

func prop(name string) map[string]any { return map[string]any{"prop": name} }

func isTrue(key string) *NodeSpec {
	return &NodeSpec{Kind: "condition", Props: map[string]any{"left": prop(key), "operator": "eq", "right": true}}
}

// taskOf returns the task of the node with the given id.
func taskOf(tt *TaskTree, id string) *task {
	n, ok := tt.tree.Lookup(id)
	if !ok {
		panic("no node " + id)
	}
	return &tt.arena.tasks[n.Index]
}
