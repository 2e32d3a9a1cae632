package bt

import (
	"errors"
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

// Sequence runs children in order until one fails; Selector until one succeeds.
// Both resume at the child that was running on the previous tick.

func updateSequence(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	return runOrdered(tt, n, t, nil, StatusFailure)
}

func updateSelector(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	return runOrdered(tt, n, t, nil, StatusSuccess)
}

// runOrdered visits children by position (or through order when set) and
// stops at the first child that returns stop or Running.
func runOrdered(tt *TaskTree, n *NodeDef, t *task, order []int, stop Status) (Status, error) {
	start := t.active
	if start == none {
		start = 0
	}
	for pos := start; pos < len(n.Children); pos++ {
		idx := pos
		if order != nil {
			idx = order[pos]
		}
		st, err := tt.exec(n.Children[idx])
		if err != nil {
			return StatusInvalid, err
		}
		switch st {
		case StatusRunning:
			t.active = pos
			return StatusRunning, nil
		case stop:
			return stop, nil
		}
	}
	if stop == StatusFailure {
		return StatusSuccess, nil
	}
	return StatusFailure, nil
}

type stochasticConfig struct {
	interrupt binding.Value
}

type stochasticOptions struct {
	Interrupt binding.Value `mapstructure:"interrupt"`
}

// enterStochastic draws a fresh permutation of the children for this activation.
func enterStochastic(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	k := len(n.Children)
	if cap(t.order) < k {
		t.order = make([]int, k)
	}
	t.order = t.order[:k]
	for i := range t.order {
		t.order[i] = i
	}
	tt.rng.Shuffle(k, func(i, j int) { t.order[i], t.order[j] = t.order[j], t.order[i] })
	return true, nil
}

func updateStochastic(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	cfg := n.cfg.(*stochasticConfig)
	if t.active != none && cfg.interrupt != nil {
		stop, err := binding.Bool(cfg.interrupt, tt.agent)
		if err != nil {
			return StatusInvalid, fmt.Errorf("interrupt: %w", err)
		}
		if stop {
			if err := tt.abort(n.Children[t.order[t.active]]); err != nil {
				return StatusInvalid, err
			}
			return StatusFailure, nil
		}
	}

	stop := StatusSuccess
	if n.Kind == KindStochasticSequence {
		stop = StatusFailure
	}
	return runOrdered(tt, n, t, t.order, stop)
}

type probabilityConfig struct {
	weights []binding.Value
}

type probabilityOptions struct {
	Weights []binding.Value `mapstructure:"weights"`
}

// enterProbability picks one child with probability proportional to its
// weight. A zero total weight fails the enter.
func enterProbability(tt *TaskTree, n *NodeDef, t *task) (bool, error) {
	cfg := n.cfg.(*probabilityConfig)
	weights := make([]float64, len(n.Children))
	var total float64
	for i := range n.Children {
		w := 1.0
		if i < len(cfg.weights) {
			var err error
			if w, err = binding.Float(cfg.weights[i], tt.agent); err != nil {
				return false, fmt.Errorf("weight %d: %w", i, err)
			}
		}
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return false, nil
	}

	r := tt.rng.Float64() * total
	t.active = len(weights) - 1
	for i, w := range weights {
		if r < w {
			t.active = i
			break
		}
		r -= w
	}
	return true, nil
}

func updateProbability(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	return tt.exec(n.Children[t.active])
}

// updateIfElse polls the condition child until it terminates, then latches the
// branch (1 on success, 2 on failure) until that branch terminates.
func updateIfElse(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	resumed := t.active != none
	if !resumed {
		st, err := tt.exec(n.Children[0])
		if err != nil {
			return StatusInvalid, err
		}
		switch st {
		case StatusRunning:
			return StatusRunning, nil
		case StatusSuccess:
			t.active = 1
		default:
			t.active = 2
		}
	}

	branch := n.Children[t.active]
	if resumed && tt.arena.tasks[branch].status != StatusRunning {
		return StatusInvalid, fmt.Errorf("%w: branch %d resumed but not running", ErrCorruptedTree, t.active)
	}
	st, err := tt.exec(branch)
	if err != nil {
		return StatusInvalid, err
	}
	if st == StatusRunning && tt.arena.tasks[branch].status != StatusRunning {
		return StatusInvalid, fmt.Errorf("%w: branch %d reported running but is not", ErrCorruptedTree, t.active)
	}
	return st, nil
}

type parallelPolicy int

const (
	policyAll parallelPolicy = iota
	policyOne
)

type parallelConfig struct {
	failure parallelPolicy
	success parallelPolicy
	loop    bool
}

type parallelOptions struct {
	Failure     string `mapstructure:"failure"`
	Success     string `mapstructure:"success"`
	ChildFinish string `mapstructure:"child_finish"`
}

func parsePolicy(s string, def parallelPolicy) (parallelPolicy, error) {
	switch s {
	case "":
		return def, nil
	case "one", "any":
		return policyOne, nil
	case "all":
		return policyAll, nil
	default:
		return def, fmt.Errorf("%w: parallel policy %q", ErrInvalidConfig, s)
	}
}

func enterParallel(_ *TaskTree, n *NodeDef, t *task) (bool, error) {
	k := len(n.Children)
	if cap(t.results) < k {
		t.results = make([]Status, k)
	}
	t.results = t.results[:k]
	clear(t.results)
	return true, nil
}

// updateParallel ticks every child each update. With child_finish=once a
// child that already terminated keeps its result; with loop it is re-entered.
func updateParallel(tt *TaskTree, n *NodeDef, t *task) (Status, error) {
	cfg := n.cfg.(*parallelConfig)
	var successes, failures, running int
	for i, c := range n.Children {
		if !cfg.loop && t.results[i].Terminal() {
			if t.results[i] == StatusSuccess {
				successes++
			} else {
				failures++
			}
			continue
		}
		st, err := tt.exec(c)
		if err != nil {
			return StatusInvalid, err
		}
		t.results[i] = st
		switch st {
		case StatusSuccess:
			successes++
		case StatusFailure:
			failures++
		default:
			running++
		}
	}

	k := len(n.Children)
	switch {
	case cfg.failure == policyOne && failures > 0, cfg.failure == policyAll && k > 0 && failures == k:
		return StatusFailure, nil
	case cfg.success == policyOne && successes > 0, cfg.success == policyAll && successes == k:
		return StatusSuccess, nil
	case running == 0 && !cfg.loop:
		return StatusFailure, nil
	}
	return StatusRunning, nil
}

func exitParallel(tt *TaskTree, n *NodeDef, _ *task, _ Status) error {
	var errs []error
	for _, c := range n.Children {
		if err := tt.abort(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("abort parallel children: %w", err)
	}
	return nil
}
