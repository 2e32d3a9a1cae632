package bt

import (
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

type actionConfig struct {
	call   binding.Value
	result Status
}

type actionOptions struct {
	Method string          `mapstructure:"method"`
	Args   []binding.Value `mapstructure:"args"`
	Result Status          `mapstructure:"result"`
}

// updateAction calls the bound method and maps its return value: a Status is
// used as is, a bool maps to Success/Failure, a status name is parsed and
// anything else yields the configured result.
func updateAction(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
	cfg := n.cfg.(*actionConfig)
	out, err := cfg.call.Get(tt.agent)
	if err != nil {
		return StatusInvalid, err
	}
	switch v := out.(type) {
	case Status:
		return v, nil
	case bool:
		return statusOf(v), nil
	case string:
		if st, err := ParseStatus(v); err == nil {
			return st, nil
		}
	}
	return cfg.result, nil
}

type waitConfig struct {
	frames binding.Value
}

type waitOptions struct {
	Frames binding.Value `mapstructure:"frames"`
}

func enterWait(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	frames, err := binding.Int(n.cfg.(*waitConfig).frames, tt.agent)
	if err != nil {
		return false, fmt.Errorf("frames: %w", err)
	}
	t.n, t.counter = frames, 0
	return true, nil
}

// updateWait reports Running for n ticks, then Success.
func updateWait(_ *TaskTree, _ *NodeDef, t *task) (Status, error) {
	if t.counter < t.n {
		t.counter++
		return StatusRunning, nil
	}
	return StatusSuccess, nil
}

type waitEventConfig struct {
	event string
}

type waitEventOptions struct {
	Event string `mapstructure:"event"`
}

func enterWaitEvent(_ *TaskTree, _ *NodeDef, t *task) (bool, error) {
	t.fired = false
	return true, nil
}

func updateWaitEvent(_ *TaskTree, _ *NodeDef, t *task) (Status, error) {
	if t.fired {
		return StatusSuccess, nil
	}
	return StatusRunning, nil
}
