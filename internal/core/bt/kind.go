package bt

import (
	"fmt"
	"strings"
)

// Kind is the closed set of node kinds the engine can execute.
type Kind int

const (
	KindInvalid Kind = iota

	// composites
	KindSequence
	KindSelector
	KindStochasticSequence
	KindStochasticSelector
	KindProbabilitySelector
	KindIfElse
	KindParallel

	// decorators
	KindInterval
	KindInverter
	KindAlwaysSuccess
	KindAlwaysFailure
	KindAlwaysRunning
	KindLoop
	KindLoopUntil
	KindCountLimit
	KindFrames

	// conditions
	KindCondition
	KindTrue
	KindFalse
	KindExpression
	KindAnd
	KindOr
	KindNot

	// leaves
	KindTask
	KindAction
	KindAssignment
	KindCompute
	KindWait
	KindWaitEvent
	KindNoop

	kindCount
)

type category int

const (
	categoryComposite category = iota + 1
	categoryDecorator
	categoryCondition
	categoryLeaf
)

type kindInfo struct {
	name     string
	category category
	// minChildren and maxChildren bound the child count; maxChildren < 0 means unbounded.
	minChildren int
	maxChildren int
}

var kinds = [kindCount]kindInfo{
	KindSequence:            {"sequence", categoryComposite, 0, -1},
	KindSelector:            {"selector", categoryComposite, 0, -1},
	KindStochasticSequence:  {"stochastic_sequence", categoryComposite, 0, -1},
	KindStochasticSelector:  {"stochastic_selector", categoryComposite, 0, -1},
	KindProbabilitySelector: {"probability_selector", categoryComposite, 1, -1},
	KindIfElse:              {"if_else", categoryComposite, 3, 3},
	KindParallel:            {"parallel", categoryComposite, 0, -1},

	KindInterval:      {"interval", categoryDecorator, 1, 1},
	KindInverter:      {"inverter", categoryDecorator, 1, 1},
	KindAlwaysSuccess: {"always_success", categoryDecorator, 1, 1},
	KindAlwaysFailure: {"always_failure", categoryDecorator, 1, 1},
	KindAlwaysRunning: {"always_running", categoryDecorator, 1, 1},
	KindLoop:          {"loop", categoryDecorator, 1, 1},
	KindLoopUntil:     {"loop_until", categoryDecorator, 1, 1},
	KindCountLimit:    {"count_limit", categoryDecorator, 1, 1},
	KindFrames:        {"frames", categoryDecorator, 1, 1},

	KindCondition:  {"condition", categoryCondition, 0, 0},
	KindTrue:       {"true", categoryCondition, 0, 0},
	KindFalse:      {"false", categoryCondition, 0, 0},
	KindExpression: {"expression", categoryCondition, 0, 0},
	KindAnd:        {"and", categoryCondition, 1, -1},
	KindOr:         {"or", categoryCondition, 1, -1},
	KindNot:        {"not", categoryCondition, 1, 1},

	// task child count depends on the htn flag and is checked by the loader
	KindTask:       {"task", categoryLeaf, 0, -1},
	KindAction:     {"action", categoryLeaf, 0, 0},
	KindAssignment: {"assignment", categoryLeaf, 0, 0},
	KindCompute:    {"compute", categoryLeaf, 0, 0},
	KindWait:       {"wait", categoryLeaf, 0, 0},
	KindWaitEvent:  {"wait_event", categoryLeaf, 0, 0},
	KindNoop:       {"noop", categoryLeaf, 0, 0},
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k := KindInvalid + 1; k < kindCount; k++ {
		m[normalizeKind(kinds[k].name)] = k
	}
	return m
}()

func normalizeKind(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// ParseKind accepts the canonical snake_case names as well as CamelCase or
// dashed spellings ("IfElse", "if-else").
func ParseKind(s string) (Kind, error) {
	k, ok := kindByName[normalizeKind(s)]
	if !ok {
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

func (k Kind) valid() bool { return k > KindInvalid && k < kindCount }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// IsComposite reports whether k is a multi-child control node.
func (k Kind) IsComposite() bool { return k.valid() && kinds[k].category == categoryComposite }

// IsDecorator reports whether k wraps exactly one child.
func (k Kind) IsDecorator() bool { return k.valid() && kinds[k].category == categoryDecorator }

// IsCondition reports whether k can be evaluated without the task lifecycle.
func (k Kind) IsCondition() bool { return k.valid() && kinds[k].category == categoryCondition }
