package bt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/behave/internal/core/binding"
)

type opClass int

const (
	opNone opClass = iota
	opAssign
	opCompute
	opCompare
)

func (c opClass) String() string {
	switch c {
	case opNone:
		return "none"
	case opAssign:
		return "assign"
	case opCompute:
		return "compute"
	case opCompare:
		return "compare"
	default:
		return fmt.Sprintf("opClass(%d)", int(c))
	}
}

type phase uint8

const (
	phaseEnter phase = 1 << iota
	phaseUpdate
	phaseSuccess
	phaseFailure
)

func parsePrePhase(s string) (phase, error) {
	switch strings.ToLower(s) {
	case "", "enter":
		return phaseEnter, nil
	case "update":
		return phaseUpdate, nil
	case "both":
		return phaseEnter | phaseUpdate, nil
	default:
		return 0, fmt.Errorf("%w: pre phase %q", ErrInvalidConfig, s)
	}
}

func parsePostPhase(s string) (phase, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return phaseSuccess | phaseFailure, nil
	case "success":
		return phaseSuccess, nil
	case "failure":
		return phaseFailure, nil
	default:
		return 0, fmt.Errorf("%w: post phase %q", ErrInvalidConfig, s)
	}
}

// attachment is a pre or post hook resolved at load time.
type attachment struct {
	class  opClass
	left   binding.Value
	target binding.Property
	right1 binding.Value
	right2 binding.Value
	arith  binding.ArithOp
	cmp    binding.CompareOp
	phase  phase
	or     bool
}

// evaluate runs the hook and reports whether it was valid. An unset left
// operand is not an error: the hook does nothing and reports invalid. For
// comparisons the result is the outcome of the comparison.
func (a *attachment) evaluate(agent binding.Agent) (bool, error) {
	switch a.class {
	case opNone:
		if a.left == nil {
			return false, nil
		}
		if _, err := a.left.Get(agent); err != nil {
			return false, err
		}
		return true, nil

	case opAssign:
		if a.target == nil || a.right2 == nil {
			return false, nil
		}
		v, err := a.right2.Get(agent)
		if err != nil {
			return false, err
		}
		return true, a.target.Set(agent, v)

	case opCompute:
		if a.target == nil || a.right2 == nil {
			return false, nil
		}
		right1 := a.right1
		if right1 == nil {
			right1 = a.target
		}
		x, err := right1.Get(agent)
		if err != nil {
			return false, err
		}
		if x == nil {
			return false, nil
		}
		y, err := a.right2.Get(agent)
		if err != nil {
			return false, err
		}
		v, err := binding.Arith(a.arith, x, y)
		if err != nil {
			return false, err
		}
		return true, a.target.Set(agent, v)

	case opCompare:
		if a.left == nil || a.right2 == nil {
			return false, nil
		}
		x, err := a.left.Get(agent)
		if err != nil {
			return false, err
		}
		if x == nil {
			return false, nil
		}
		y, err := a.right2.Get(agent)
		if err != nil {
			return false, err
		}
		return binding.Compare(a.cmp, x, y)
	}
	return false, fmt.Errorf("%w: attachment class %s", ErrInvalidConfig, a.class)
}

// preconditions folds the pre hooks active in phase p left to right with
// their and/or combinators. No hooks means true.
func (tt *TaskTree) preconditions(n *NodeDef, p phase) (bool, error) {
	result, first := true, true
	for _, a := range n.pre {
		if a.phase&p == 0 {
			continue
		}
		ok, err := a.evaluate(tt.agent)
		if err != nil {
			return false, fmt.Errorf("precondition: %w", err)
		}
		switch {
		case first:
			result, first = ok, false
		case a.or:
			result = result || ok
		default:
			result = result && ok
		}
	}
	return result, nil
}

// effects runs the post hooks matching the exit status.
func (tt *TaskTree) effects(n *NodeDef, st Status) error {
	p := phaseSuccess
	if st == StatusFailure {
		p = phaseFailure
	}
	var errs []error
	for _, a := range n.post {
		if a.phase&p == 0 {
			continue
		}
		if _, err := a.evaluate(tt.agent); err != nil {
			errs = append(errs, fmt.Errorf("effect: %w", err))
		}
	}
	return errors.Join(errs...)
}

func updateAssignment(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
	ok, err := n.cfg.(*attachment).evaluate(tt.agent)
	if err != nil {
		return StatusInvalid, err
	}
	return statusOf(ok), nil
}
