package binding

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrDivByZero is returned by Arith for an integer division by zero.
var ErrDivByZero = errors.New("binding: division by zero")

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareNames = map[string]CompareOp{
	"eq": OpEq, "==": OpEq, "=": OpEq,
	"ne": OpNe, "!=": OpNe,
	"lt": OpLt, "<": OpLt,
	"le": OpLe, "<=": OpLe,
	"gt": OpGt, ">": OpGt,
	"ge": OpGe, ">=": OpGe,
}

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpLt:
		return "lt"
	case OpLe:
		return "le"
	case OpGt:
		return "gt"
	case OpGe:
		return "ge"
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// ParseCompareOp accepts both the short names (eq, lt, ...) and symbols (==, <, ...).
func ParseCompareOp(s string) (CompareOp, error) {
	op, ok := compareNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown compare operator %q", s)
	}
	return op, nil
}

func (op *CompareOp) UnmarshalText(b []byte) error {
	v, err := ParseCompareOp(string(b))
	if err != nil {
		return err
	}
	*op = v
	return nil
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

var arithNames = map[string]ArithOp{
	"add": OpAdd, "+": OpAdd,
	"sub": OpSub, "-": OpSub,
	"mul": OpMul, "*": OpMul,
	"div": OpDiv, "/": OpDiv,
}

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	default:
		return fmt.Sprintf("ArithOp(%d)", int(op))
	}
}

// ParseArithOp accepts add/sub/mul/div and + - * /.
func ParseArithOp(s string) (ArithOp, error) {
	op, ok := arithNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown arithmetic operator %q", s)
	}
	return op, nil
}

func (op *ArithOp) UnmarshalText(b []byte) error {
	v, err := ParseArithOp(string(b))
	if err != nil {
		return err
	}
	*op = v
	return nil
}

// Compare applies op to a and b. Numbers compare by value regardless of their
// Go type, strings lexically, everything else only by (in)equality.
func Compare(op CompareOp, a, b any) (bool, error) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return compareOrdered(op, fa, fb), nil
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return compareOrdered(op, sa, sb), nil
		}
	}
	switch op {
	case OpEq:
		return equal(a, b), nil
	case OpNe:
		return !equal(a, b), nil
	default:
		return false, fmt.Errorf("%w: %s on %T and %T", ErrType, op, a, b)
	}
}

func compareOrdered[T float64 | string](op CompareOp, a, b T) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// Arith applies op to a and b. Two integers produce an int, otherwise the
// result is a float64.
func Arith(op ArithOp, a, b any) (any, error) {
	ia, aInt := toInt(a)
	ib, bInt := toInt(b)
	if aInt && bInt {
		switch op {
		case OpAdd:
			return ia + ib, nil
		case OpSub:
			return ia - ib, nil
		case OpMul:
			return ia * ib, nil
		case OpDiv:
			if ib == 0 {
				return nil, ErrDivByZero
			}
			return ia / ib, nil
		}
	}

	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, fmt.Errorf("%w: %s on %T and %T", ErrType, op, a, b)
	}
	switch op {
	case OpAdd:
		return fa + fb, nil
	case OpSub:
		return fa - fb, nil
	case OpMul:
		return fa * fb, nil
	case OpDiv:
		return fa / fb, nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %d", int(op))
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
