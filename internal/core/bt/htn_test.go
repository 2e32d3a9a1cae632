package bt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
)

type recordingFactory struct {
	props   map[string]any
	planner *recordingPlanner
}

func (f *recordingFactory) Compile(_ *NodeDef, props map[string]any, _ binding.Resolver) (PlannerTemplate, error) {
	f.props = props
	return f, nil
}

func (f *recordingFactory) NewPlanner() Planner { return f.planner }

type recordingPlanner struct {
	events  []string
	results []Status
	agent   binding.Agent
	node    string
}

func (p *recordingPlanner) Init(agent binding.Agent, node *NodeDef) error {
	p.events = append(p.events, "init")
	p.agent, p.node = agent, node.ID
	return nil
}

func (p *recordingPlanner) Update() (Status, error) {
	p.events = append(p.events, "update")
	st := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return st, nil
}

func (p *recordingPlanner) Uninit() { p.events = append(p.events, "uninit") }

func TestHTNTaskDelegatesToPlanner(t *testing.T) {
	planner := &recordingPlanner{results: []Status{StatusRunning, StatusRunning, StatusSuccess}}
	factory := &recordingFactory{planner: planner}
	f := newFixture(t, WithPlannerFactory(factory))

	tt := f.bind(named("plan", "task", map[string]any{"htn": true, "goal": "fed"}, act("ignored")))
	assert.True(t, tt.Tree().HTN())
	assert.Equal(t, map[string]any{"goal": "fed"}, factory.props)

	assert.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, StatusSuccess, f.tick(tt))

	assert.Equal(t, []string{"init", "update", "update", "update", "uninit"}, planner.events)
	assert.Equal(t, "plan", planner.node)
	assert.Equal(t, f.agent, planner.agent)
	assert.Empty(t, f.calls, "declared children are ignored")
}

func TestHTNTaskUninitOnAbort(t *testing.T) {
	planner := &recordingPlanner{results: []Status{StatusRunning}}
	f := newFixture(t, WithPlannerFactory(&recordingFactory{planner: planner}))
	tt := f.bind(named("plan", "task", map[string]any{"htn": true}))

	require.Equal(t, StatusRunning, f.tick(tt))
	tt.Unbind()
	assert.Equal(t, []string{"init", "update", "uninit"}, planner.events)
}

func TestHTNTaskUninitOnPoisonedUnbind(t *testing.T) {
	planner := &recordingPlanner{results: []Status{StatusRunning}}
	f := newFixture(t, WithPlannerFactory(&recordingFactory{planner: planner}))
	f.r.RegisterMethod("fail", func(binding.Agent, ...any) (any, error) {
		return nil, errors.New("boom")
	})
	tt := f.bind(node("parallel",
		named("plan", "task", map[string]any{"htn": true}),
		named("broken", "action", map[string]any{"method": "fail"}),
	))

	_, err := tt.Tick()
	require.Error(t, err)
	assert.Equal(t, []string{"init", "update"}, planner.events)

	tt.Unbind()
	assert.Equal(t, []string{"init", "update", "uninit"}, planner.events)
}

func TestHTNWithoutFactoryIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Load(&Definition{ID: "x", Root: named("plan", "task", map[string]any{"htn": true})})
	assert.ErrorIs(t, err, ErrNoPlanner)
}

func TestPlainTaskRejectsPlannerSettings(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Load(&Definition{ID: "x", Root: named("plan", "task", map[string]any{"goal": "fed"}, act("a"))})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
