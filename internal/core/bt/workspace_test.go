package bt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/observability/log"
)

const patrolYAML = `
id: patrol
root:
  kind: selector
  children:
    - id: flee
      kind: sequence
      children:
        - kind: condition
          props: {left: {prop: hp}, operator: lt, right: 3}
        - kind: action
          props: {method: run, args: [flee]}
    - id: patrol
      kind: interval
      props: {count: 2, front: true}
      children:
        - kind: action
          props: {method: run, args: [walk]}
`

func TestLoadYAMLAndTick(t *testing.T) {
	f := newFixture(t)
	def, err := LoadYAML(strings.NewReader(patrolYAML))
	require.NoError(t, err)

	tree, err := f.ws.Load(def)
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, []string{"patrol"}, f.ws.Trees())

	tt, err := f.ws.Bind(f.agent, "patrol")
	require.NoError(t, err)
	defer tt.Unbind()

	f.set("hp", 10)
	for i := 0; i < 3; i++ {
		f.tick(tt)
	}
	assert.Equal(t, []string{"walk"}, f.calls)

	f.set("hp", 1)
	f.tick(tt)
	assert.Equal(t, []string{"walk", "flee"}, f.calls)
}

func TestLoadJSON(t *testing.T) {
	def, err := LoadJSON(strings.NewReader(`{"id":"j","root":{"kind":"IfElse","children":[{"kind":"true"},{"kind":"noop"},{"kind":"noop"}]}}`))
	require.NoError(t, err)
	f := newFixture(t)
	_, err = f.ws.Load(def)
	require.NoError(t, err)
}

func TestLoadFileDefaultsID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: {kind: noop}\n"), 0o600))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "guard", def.ID)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCollectsAllErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Load(&Definition{ID: "bad", Root: node("sequence",
		named("a", "teleport", nil),
		named("b", "if_else", nil),
		named("a", "noop", nil),
	)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.ErrorIs(t, err, ErrChildCount)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.Empty(t, f.ws.Trees())
}

func TestLoadRejectsEmptyAndDuplicate(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Load(&Definition{ID: "x"})
	assert.ErrorIs(t, err, ErrEmptyDefinition)

	_, err = f.ws.Load(&Definition{Root: node("noop")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = f.ws.Load(&Definition{ID: "x", Root: node("noop")})
	require.NoError(t, err)
	_, err = f.ws.Load(&Definition{ID: "x", Root: node("noop")})
	assert.ErrorIs(t, err, ErrTreeExists)

	require.NoError(t, f.ws.Validate(&Definition{ID: "x", Root: node("noop")}))
}

func TestBindUnknownTree(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Bind(f.agent, "ghost")
	assert.ErrorIs(t, err, ErrUnknownTree)
	assert.ErrorIs(t, f.ws.Unload("ghost"), ErrUnknownTree)
}

func TestUnbindReleasesTaskTree(t *testing.T) {
	f := newFixture(t)
	tt := f.bind(node("noop"))
	f.tick(tt)
	assert.EqualValues(t, 1, tt.Frame())

	tt.Unbind()
	_, err := tt.Tick()
	assert.ErrorIs(t, err, ErrUnbound)
	_, err = tt.FireEvent("x", nil)
	assert.ErrorIs(t, err, ErrUnbound)
	assert.Nil(t, tt.ActivePath())

	again, err := f.ws.Bind(f.agent, t.Name())
	require.NoError(t, err)
	defer again.Unbind()
	assert.Equal(t, StatusInvalid, again.Status(), "a recycled arena starts clean")
}

func TestUnloadKeepsBoundAgentsRunning(t *testing.T) {
	f := newFixture(t)
	f.result("a", StatusRunning)
	tt := f.bind(act("a"))
	require.NoError(t, f.ws.Unload(t.Name()))
	assert.Equal(t, StatusRunning, f.tick(tt))
}

func TestAgentsAreIndependent(t *testing.T) {
	f := newFixture(t)
	tree := named("w", "wait", map[string]any{"frames": prop("frames")})
	_, err := f.ws.Load(&Definition{ID: "wait", Root: tree})
	require.NoError(t, err)

	a, b := binding.NewAgent("a"), binding.NewAgent("b")
	a.Blackboard().Set("frames", 1)
	b.Blackboard().Set("frames", 3)
	ta, err := f.ws.Bind(a, "wait")
	require.NoError(t, err)
	tb, err := f.ws.Bind(b, "wait")
	require.NoError(t, err)

	var sa, sb []Status
	for i := 0; i < 4; i++ {
		st, err := ta.Tick()
		require.NoError(t, err)
		sa = append(sa, st)
		st, err = tb.Tick()
		require.NoError(t, err)
		sb = append(sb, st)
	}
	assert.Equal(t, []Status{StatusRunning, StatusSuccess, StatusRunning, StatusSuccess}, sa)
	assert.Equal(t, []Status{StatusRunning, StatusRunning, StatusRunning, StatusSuccess}, sb)
}

func TestSeedMakesStochasticOrderReproducible(t *testing.T) {
	run := func() []string {
		f := newFixture(t, WithSeed(99))
		for i := 0; i < 5; i++ {
			f.result(children(5)[i].ID, StatusFailure)
		}
		tt := f.bind(named("root", "stochastic_selector", nil, children(5)...))
		for i := 0; i < 3; i++ {
			f.tick(tt)
		}
		return f.calls
	}
	assert.Equal(t, run(), run())
}

func TestWorkspaceLogsFatalErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := newFixture(t, WithLogger(log.NewWithCore(core)))
	f.set("hp", "high")
	tt := f.bind(named("c", "condition", map[string]any{"left": prop("hp"), "operator": "lt", "right": 5}))

	_, err := tt.Tick()
	require.Error(t, err)

	poisoned := logs.FilterMessage("task tree poisoned").All()
	require.Len(t, poisoned, 1)
	assert.Equal(t, "agent-1", poisoned[0].ContextMap()["agent"])
	assert.Equal(t, 1, logs.FilterMessage("tree loaded").Len())
}

func TestStatusText(t *testing.T) {
	for _, st := range []Status{StatusInvalid, StatusRunning, StatusSuccess, StatusFailure} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, st, back)
	}
	_, err := ParseStatus("sleeping")
	assert.Error(t, err)

	k, err := ParseKind("StochasticSelector")
	require.NoError(t, err)
	assert.Equal(t, KindStochasticSelector, k)
	assert.Equal(t, "stochastic_selector", k.String())
	assert.True(t, KindIfElse.IsComposite())
	assert.True(t, KindInterval.IsDecorator())
	assert.True(t, KindNot.IsCondition())
}
