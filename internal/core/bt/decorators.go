package bt

import (
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

func updateChild(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
	return tt.exec(n.Children[0])
}

type intervalConfig struct {
	count binding.Value
	front binding.Value
}

type intervalOptions struct {
	Count binding.Value `mapstructure:"count"`
	Front binding.Value `mapstructure:"front"`
}

// enterInterval captures count and front for this activation. The counter is
// seeded only once per task lifetime: with front the gate opens on the first
// tick and then stays closed for n ticks, without front it is closed for the
// first n ticks.
func enterInterval(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*intervalConfig)
	count, err := binding.Int(cfg.count, tt.agent)
	if err != nil {
		return false, fmt.Errorf("count: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	front, err := binding.Bool(cfg.front, tt.agent)
	if err != nil {
		return false, fmt.Errorf("front: %w", err)
	}

	t.n, t.front = count, front
	if t.counter == counterUnset {
		if front {
			t.counter = count
		} else {
			t.counter = 0
		}
	}
	return true, nil
}

// updateInterval answers Success without touching the child while the gate is
// closed, then resets the counter and delegates to the child. A child that
// went Running keeps being driven until it terminates.
func updateInterval(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	if t.active == none {
		if t.counter < t.n {
			t.counter++
			return StatusSuccess, nil
		}
		t.counter = 0
	}
	st, err := tt.exec(n.Children[0])
	if st == StatusRunning {
		t.active = 0
	}
	return st, err
}

func updateInverter(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
	st, err := tt.exec(n.Children[0])
	if err != nil {
		return StatusInvalid, err
	}
	switch st {
	case StatusSuccess:
		return StatusFailure, nil
	case StatusFailure:
		return StatusSuccess, nil
	}
	return st, nil
}

// updateAlways replaces the child's terminal status with result. AlwaysRunning
// turns every outcome into Running.
func updateAlways(result Status) func(*TaskTree, *NodeDef, *task) (Status, error) {
	return func(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
		st, err := tt.exec(n.Children[0])
		if err != nil {
			return StatusInvalid, err
		}
		if st == StatusRunning {
			return StatusRunning, nil
		}
		return result, nil
	}
}

type loopConfig struct {
	count binding.Value
	until Status
}

type loopOptions struct {
	Count binding.Value `mapstructure:"count"`
	Until Status        `mapstructure:"until"`
}

func enterLoop(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*loopConfig)
	count, err := binding.Int(cfg.count, tt.agent)
	if err != nil {
		return false, fmt.Errorf("count: %w", err)
	}
	t.n, t.counter = count, 0
	return true, nil
}

// updateLoop re-runs the child count times (forever when count is negative).
// Between iterations it reports Running; the child is re-entered next tick.
func updateLoop(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	if t.n == 0 {
		return StatusSuccess, nil
	}
	st, err := tt.exec(n.Children[0])
	if err != nil || st == StatusRunning {
		return st, err
	}
	t.counter++
	if t.n > 0 && t.counter >= t.n {
		return StatusSuccess, nil
	}
	return StatusRunning, nil
}

// updateLoopUntil stops with Success as soon as the child returns the
// configured status, and with Failure once count iterations are used up.
func updateLoopUntil(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	cfg := n.cfg.(*loopConfig)
	if t.n == 0 {
		return StatusFailure, nil
	}
	st, err := tt.exec(n.Children[0])
	if err != nil || st == StatusRunning {
		return st, err
	}
	if st == cfg.until {
		return StatusSuccess, nil
	}
	t.counter++
	if t.n > 0 && t.counter >= t.n {
		return StatusFailure, nil
	}
	return StatusRunning, nil
}

type countConfig struct {
	count binding.Value
}

type countOptions struct {
	Count binding.Value `mapstructure:"count"`
}

// enterCountLimit admits at most count activations over the task lifetime.
func enterCountLimit(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*countConfig)
	count, err := binding.Int(cfg.count, tt.agent)
	if err != nil {
		return false, fmt.Errorf("count: %w", err)
	}
	if count >= 0 && t.counter >= count {
		return false, nil
	}
	t.counter++
	return true, nil
}

type framesConfig struct {
	frames binding.Value
}

type framesOptions struct {
	Frames binding.Value `mapstructure:"frames"`
}

func enterFrames(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*framesConfig)
	frames, err := binding.Int(cfg.frames, tt.agent)
	if err != nil {
		return false, fmt.Errorf("frames: %w", err)
	}
	t.n, t.counter = frames, 0
	return true, nil
}

// updateFrames lets the child run for at most n ticks. A child still running
// after that is aborted and the decorator succeeds.
func updateFrames(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	child := n.Children[0]
	st, err := tt.exec(child)
	if err != nil || st != StatusRunning {
		return st, err
	}
	t.counter++
	if t.counter >= t.n {
		if err := tt.abort(child); err != nil {
			return StatusInvalid, err
		}
		return StatusSuccess, nil
	}
	return StatusRunning, nil
}
