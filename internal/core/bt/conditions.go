package bt

import (
	"fmt"

	"github.com/zeusync/behave/internal/core/binding"
)

type conditionConfig struct {
	left  binding.Value
	op    binding.CompareOp
	right binding.Value
}

type conditionOptions struct {
	Left     binding.Value     `mapstructure:"left"`
	Operator binding.CompareOp `mapstructure:"operator"`
	Right    binding.Value     `mapstructure:"right"`
}

type expressionConfig struct {
	program *binding.ExprValue
}

type expressionOptions struct {
	Expr string `mapstructure:"expr"`
}

// updateCondition reports a condition node as a one-tick task.
func updateCondition(tt *TaskTree, n *NodeDef, _ *task) (Status, error) {
	ok, err := tt.evaluate(n)
	if err != nil {
		return StatusInvalid, err
	}
	return statusOf(ok), nil
}

// evaluate is side-effect free and never touches task state. And and Or
// short-circuit left to right.
func (tt *TaskTree) evaluate(n *NodeDef) (bool, error) {
	switch n.Kind {
	case KindTrue:
		return true, nil
	case KindFalse:
		return false, nil
	case KindCondition:
		cfg := n.cfg.(*conditionConfig)
		left, err := cfg.left.Get(tt.agent)
		if err != nil {
			return false, fmt.Errorf("left: %w", err)
		}
		right, err := cfg.right.Get(tt.agent)
		if err != nil {
			return false, fmt.Errorf("right: %w", err)
		}
		return binding.Compare(cfg.op, left, right)
	case KindExpression:
		return binding.Bool(n.cfg.(*expressionConfig).program, tt.agent)
	case KindAnd:
		for _, c := range n.Children {
			ok, err := tt.evaluate(tt.tree.nodes[c])
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case KindOr:
		for _, c := range n.Children {
			ok, err := tt.evaluate(tt.tree.nodes[c])
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case KindNot:
		ok, err := tt.evaluate(tt.tree.nodes[n.Children[0]])
		return !ok && err == nil, err
	default:
		return false, fmt.Errorf("%w: %s", ErrNotCondition, n.Kind)
	}
}
