package binding

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrNoSnapshot is returned when an expression is compiled against a resolver
// that cannot expose agent state.
var ErrNoSnapshot = errors.New("binding: resolver does not implement Snapshotter")

// ExprValue is a compiled expr-lang program evaluated against an agent snapshot.
// The agent's properties are visible as top-level variables; "agent" holds the ID.
type ExprValue struct {
	src     string
	program *vm.Program
	snap    Snapshotter
}

// CompileExpr compiles src once. With asBool the program must yield a bool.
func CompileExpr(src string, snap Snapshotter, asBool bool) (*ExprValue, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	opts := []expr.Option{expr.AllowUndefinedVariables()}
	if asBool {
		opts = append(opts, expr.AsBool())
	}
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	return &ExprValue{src: src, program: program, snap: snap}, nil
}

// Source returns the expression text.
func (e *ExprValue) Source() string { return e.src }

func (e *ExprValue) Get(a Agent) (any, error) {
	env, err := e.snap.Snapshot(a)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = make(map[string]any, 1)
	}
	if _, ok := env["agent"]; !ok {
		env["agent"] = a.ID()
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, fmt.Errorf("run expression %q: %w", e.src, err)
	}
	return out, nil
}
