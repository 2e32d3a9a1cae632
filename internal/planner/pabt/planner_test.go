package pabt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
)

func goal(reqs ...map[string]any) map[string]any {
	g := make([]any, 0, len(reqs))
	for _, r := range reqs {
		g = append(g, r)
	}
	return map[string]any{"htn": true, "goal": g}
}

func req(prop, op string, value any) map[string]any {
	return map[string]any{"prop": prop, "op": op, "value": value}
}

func kitchen(t *testing.T, extra ...Action) *Factory {
	t.Helper()
	actions := append([]Action{
		{
			Name:    "eat",
			Pre:     []Requirement{{Prop: "has_food", Op: binding.OpEq, Value: true}},
			Effects: map[string]any{"fed": true},
		},
		{
			Name:    "forage",
			Effects: map[string]any{"has_food": true},
		},
	}, extra...)
	f, err := NewFactory(actions...)
	require.NoError(t, err)
	return f
}

func bind(t *testing.T, f *Factory, props map[string]any) (*bt.TaskTree, *binding.BasicAgent) {
	t.Helper()
	ws := bt.NewWorkspace(binding.NewBlackboardResolver(), bt.WithPlannerFactory(f))
	_, err := ws.Load(&bt.Definition{ID: "plan", Root: &bt.NodeSpec{ID: "plan", Kind: "task", Props: props}})
	require.NoError(t, err)

	agent := binding.NewAgent("npc")
	tt, err := ws.Bind(agent, "plan")
	require.NoError(t, err)
	t.Cleanup(tt.Unbind)
	return tt, agent
}

// runUntil ticks until the tree succeeds or the budget is spent.
func runUntil(t *testing.T, tt *bt.TaskTree, budget int) bt.Status {
	t.Helper()
	var st bt.Status
	for range budget {
		var err error
		st, err = tt.Tick()
		require.NoError(t, err)
		if st == bt.StatusSuccess {
			break
		}
	}
	return st
}

func TestPlanChainsActions(t *testing.T) {
	tt, agent := bind(t, kitchen(t), goal(req("fed", "eq", true)))

	assert.Equal(t, bt.StatusSuccess, runUntil(t, tt, 20))

	fed, _ := agent.Blackboard().GetBool("fed")
	food, _ := agent.Blackboard().GetBool("has_food")
	assert.True(t, fed)
	assert.True(t, food)
}

func TestPlanSatisfiedGoalSucceedsImmediately(t *testing.T) {
	calls := 0
	f := kitchen(t, Action{
		Name:    "cook",
		Effects: map[string]any{"warm": true},
		Run: func(binding.Agent, ...any) (any, error) {
			calls++
			return true, nil
		},
	})
	tt, agent := bind(t, f, goal(req("warm", "eq", true)))
	agent.Blackboard().Set("warm", true)

	st, err := tt.Tick()
	require.NoError(t, err)
	assert.Equal(t, bt.StatusSuccess, st)
	assert.Zero(t, calls)
}

func TestPlanRunsCustomAction(t *testing.T) {
	calls := 0
	f := kitchen(t, Action{
		Name:    "mine",
		Effects: map[string]any{"gold": 10},
		Run: func(a binding.Agent, _ ...any) (any, error) {
			calls++
			bb := a.(binding.BlackboardAgent).Blackboard()
			n, _ := bb.GetInt("gold")
			bb.Set("gold", n+5)
			if n+5 < 10 {
				return bt.StatusRunning, nil
			}
			return bt.StatusSuccess, nil
		},
	})
	tt, agent := bind(t, f, goal(req("gold", ">=", 10)))

	assert.Equal(t, bt.StatusSuccess, runUntil(t, tt, 20))
	gold, _ := agent.Blackboard().GetInt("gold")
	assert.GreaterOrEqual(t, gold, 10)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestPlanUnreachableGoalNeverSucceeds(t *testing.T) {
	tt, _ := bind(t, kitchen(t), goal(req("gold", "ge", 10)))
	for range 5 {
		st, _ := tt.Tick()
		require.NotEqual(t, bt.StatusSuccess, st)
	}
}

func TestPlanActionAllowList(t *testing.T) {
	props := goal(req("fed", "eq", true))
	props["actions"] = []any{"eat"}
	tt, agent := bind(t, kitchen(t), props)

	for range 5 {
		st, _ := tt.Tick()
		require.NotEqual(t, bt.StatusSuccess, st)
	}
	assert.False(t, agent.Blackboard().Has("has_food"), "forage is not allowed")
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]struct {
		props map[string]any
		want  error
	}{
		"empty goal":     {map[string]any{"htn": true}, ErrEmptyGoal},
		"unknown action": {map[string]any{"htn": true, "goal": []any{req("fed", "eq", true)}, "actions": []any{"fly"}}, ErrUnknownAction},
		"stray prop":     {map[string]any{"htn": true, "goal": []any{req("fed", "eq", true)}, "budget": 3}, bt.ErrInvalidConfig},
		"bad operator":   {goal(req("fed", "~", true)), bt.ErrInvalidConfig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ws := bt.NewWorkspace(binding.NewBlackboardResolver(), bt.WithPlannerFactory(kitchen(t)))
			_, err := ws.Load(&bt.Definition{ID: "plan", Root: &bt.NodeSpec{Kind: "task", Props: tc.props}})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegister(t *testing.T) {
	f := kitchen(t)
	assert.Equal(t, []string{"eat", "forage"}, f.Actions())

	assert.ErrorIs(t, f.Register(Action{Name: "eat"}), ErrDuplicateAction)
	assert.ErrorIs(t, f.Register(Action{}), bt.ErrInvalidConfig)

	_, err := NewFactory(Action{Name: "a"}, Action{Name: "a"})
	assert.ErrorIs(t, err, ErrDuplicateAction)
}

func TestStateActionsFilterByEffect(t *testing.T) {
	r := binding.NewBlackboardResolver()
	fed, err := r.Property("fed")
	require.NoError(t, err)
	food, err := r.Property("has_food")
	require.NoError(t, err)

	s := &state{agent: binding.NewAgent("npc"), props: map[string]binding.Property{"fed": fed, "has_food": food}}
	for _, a := range []Action{
		{Name: "eat", Effects: map[string]any{"fed": true}},
		{Name: "forage", Effects: map[string]any{"has_food": true}},
	} {
		s.actions = append(s.actions, s.action(a))
	}

	got, err := s.Actions(condition{req: Requirement{Prop: "fed", Op: binding.OpEq, Value: true}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Same(t, s.actions[0], got[0])

	got, err = s.Actions(condition{req: Requirement{Prop: "fed", Op: binding.OpEq, Value: false}})
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := s.Actions(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.Variable("missing")
	assert.ErrorIs(t, err, binding.ErrUnresolved)
	_, err = s.Variable(42)
	assert.Error(t, err)
}
