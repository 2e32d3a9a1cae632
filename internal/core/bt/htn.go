package bt

import (
	"errors"
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

// PlannerFactory compiles the planner configuration of an htn task node once,
// when its tree is loaded.
type PlannerFactory interface {
	Compile(node *NodeDef, props map[string]any, r binding.Resolver) (PlannerTemplate, error)
}

// PlannerTemplate creates one Planner per activation of its task node.
type PlannerTemplate interface {
	NewPlanner() Planner
}

// Planner drives an htn task node. Init runs on enter, Update on every tick
// while the node is running and Uninit on exit, including aborts.
type Planner interface {
	Init(agent binding.Agent, node *NodeDef) error
	Update() (Status, error)
	Uninit()
}

type taskConfig struct {
	htn      bool
	template PlannerTemplate
}

type taskOptions struct {
	HTN     bool           `mapstructure:"htn"`
	Planner map[string]any `mapstructure:",remain"`
}

func enterTask(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*taskConfig)
	if !cfg.htn {
		return true, nil
	}
	p := cfg.template.NewPlanner()
	if p == nil {
		return false, errors.New("planner template returned nil")
	}
	if err := p.Init(tt.agent, n); err != nil {
		return false, fmt.Errorf("planner init: %w", err)
	}
	t.planner = p
	return true, nil
}

// updateTask delegates to the single child, or to the planner when the node
// is htn-flagged; declared children are then ignored.
func updateTask(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	if !n.cfg.(*taskConfig).htn {
		return tt.exec(n.Children[0])
	}
	if t.planner == nil {
		return StatusInvalid, fmt.Errorf("%w: htn task has no planner", ErrCorruptedTree)
	}
	st, err := t.planner.Update()
	if err != nil {
		return StatusInvalid, fmt.Errorf("planner update: %w", err)
	}
	return st, nil
}

func exitTask(_ *TaskTree, _ *NodeDef, t *task, _ Status) error {
	if t.planner != nil {
		t.planner.Uninit()
		t.planner = nil
	}
	return nil
}
