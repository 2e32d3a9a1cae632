package bt

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/observability/log"
)

// counterUnset marks a decorator counter that has not been seeded since the
// task was created.
const counterUnset = -1

// task is the per-agent state of one node. It is created on first entry and
// reset, not dropped, when the node exits.
type task struct {
	live   bool
	status Status
	active int

	order   []int
	results []Status
	n       int
	front   bool
	counter int
	fired   bool
	planner Planner
}

func (t *task) create(n *NodeDef) {
	*t = task{live: true, status: StatusInvalid, active: none}
	if n.Kind == KindInterval {
		t.counter = counterUnset
	}
}

type behavior struct {
	enter  func(tt *TaskTree, n *NodeDef, t *task) (bool, error)
	update func(tt *TaskTree, n *NodeDef, t *task) (Status, error)
	exit   func(tt *TaskTree, n *NodeDef, t *task, st Status) error
}

var behaviors [kindCount]behavior

func init() {
	behaviors = [kindCount]behavior{
		KindSequence:            {update: updateSequence},
		KindSelector:            {update: updateSelector},
		KindStochasticSequence:  {enter: enterStochastic, update: updateStochastic},
		KindStochasticSelector:  {enter: enterStochastic, update: updateStochastic},
		KindProbabilitySelector: {enter: enterProbability, update: updateProbability},
		KindIfElse:              {update: updateIfElse},
		KindParallel:            {enter: enterParallel, update: updateParallel, exit: exitParallel},

		KindInterval:      {enter: enterInterval, update: updateInterval},
		KindInverter:      {update: updateInverter},
		KindAlwaysSuccess: {update: updateAlways(StatusSuccess)},
		KindAlwaysFailure: {update: updateAlways(StatusFailure)},
		KindAlwaysRunning: {update: updateAlways(StatusRunning)},
		KindLoop:          {enter: enterLoop, update: updateLoop},
		KindLoopUntil:     {enter: enterLoop, update: updateLoopUntil},
		KindCountLimit:    {enter: enterCountLimit, update: updateChild},
		KindFrames:        {enter: enterFrames, update: updateFrames},

		KindCondition:  {update: updateCondition},
		KindTrue:       {update: updateCondition},
		KindFalse:      {update: updateCondition},
		KindExpression: {update: updateCondition},
		KindAnd:        {update: updateCondition},
		KindOr:         {update: updateCondition},
		KindNot:        {update: updateCondition},

		KindTask:       {enter: enterTask, update: updateTask, exit: exitTask},
		KindAction:     {update: updateAction},
		KindAssignment: {update: updateAssignment},
		KindCompute:    {update: updateAssignment},
		KindWait:       {enter: enterWait, update: updateWait},
		KindWaitEvent:  {enter: enterWaitEvent, update: updateWaitEvent},
		KindNoop:       {update: func(*TaskTree, *NodeDef, *task) (Status, error) { return StatusSuccess, nil }},
	}
}

// TaskTree is the runtime state of one agent bound to one Tree. It must be
// driven by a single goroutine at a time and holds no locks.
type TaskTree struct {
	ws    *Workspace
	tree  *Tree
	agent binding.Agent
	arena *arena
	rng   *rand.Rand
	log   log.Log

	frame uint64
	err   error
}

// Agent returns the bound agent.
func (tt *TaskTree) Agent() binding.Agent { return tt.agent }

// Tree returns the tree the agent is bound to, nil after Unbind.
func (tt *TaskTree) Tree() *Tree { return tt.tree }

// Frame is the number of ticks run so far.
func (tt *TaskTree) Frame() uint64 { return tt.frame }

// Err returns the fatal error that poisoned the tree, if any.
func (tt *TaskTree) Err() error { return tt.err }

// Status returns the root status left by the last tick.
func (tt *TaskTree) Status() Status {
	if tt.tree == nil {
		return StatusInvalid
	}
	return tt.arena.tasks[0].status
}

// Tick runs one evaluation pass from the root. A fatal error poisons the tree:
// every later Tick returns the same error until the agent is rebound.
func (tt *TaskTree) Tick() (Status, error) {
	if tt.tree == nil {
		return StatusInvalid, ErrUnbound
	}
	if tt.err != nil {
		return StatusInvalid, tt.err
	}

	root := tt.task(0)
	if root.status.Terminal() {
		root.status = StatusInvalid
	}

	tt.frame++
	st, err := tt.exec(0)
	if err != nil {
		tt.poison(err)
		return StatusInvalid, tt.err
	}
	return st, nil
}

// Unbind aborts whatever is still running and returns the task arena to the
// tree's pool. The TaskTree is unusable afterwards.
func (tt *TaskTree) Unbind() {
	if tt.tree == nil {
		return
	}
	if tt.err == nil {
		if err := tt.abort(0); err != nil {
			tt.log.Warn("abort on unbind failed", log.Error(err))
		}
	} else {
		// Poisoned trees skip exits; live planners are still released.
		for i := range tt.arena.tasks {
			if t := &tt.arena.tasks[i]; t.planner != nil {
				t.planner.Uninit()
				t.planner = nil
			}
		}
	}
	tt.tree.release(tt.arena)
	tt.log.Debug("agent unbound", log.Int64("frames", int64(tt.frame)))
	tt.tree, tt.arena = nil, nil
}

// ActivePath lists the ids of running nodes from the root down, following
// every running child so parallel branches are included.
func (tt *TaskTree) ActivePath() []string {
	if tt.tree == nil {
		return nil
	}
	var path []string
	var walk func(i int)
	walk = func(i int) {
		t := &tt.arena.tasks[i]
		if !t.live || t.status != StatusRunning {
			return
		}
		n := tt.tree.nodes[i]
		path = append(path, n.ID)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(0)
	return path
}

func (tt *TaskTree) task(i int) *task {
	t := &tt.arena.tasks[i]
	if !t.live {
		t.create(tt.tree.nodes[i])
	}
	return t
}

func (tt *TaskTree) poison(err error) {
	tt.err = err
	tt.log.Error("task tree poisoned", log.Error(err))
}

// fatal tags err with the node it surfaced at, once.
func (tt *TaskTree) fatal(n *NodeDef, err error) error {
	var te *TickError
	if errors.As(err, &te) {
		return err
	}
	return &TickError{Tree: tt.tree.ID, Agent: tt.agent.ID(), Node: n.ID, Err: err}
}

// exec enters the node if it is not running, updates it, and exits it as soon
// as it reaches a terminal status.
func (tt *TaskTree) exec(i int) (Status, error) {
	n := tt.tree.nodes[i]
	t := tt.task(i)

	if t.status != StatusRunning {
		t.status = StatusInvalid
		ok, err := tt.enter(n, t)
		if err != nil {
			return StatusInvalid, tt.fatal(n, err)
		}
		if !ok {
			t.status = StatusFailure
			return StatusFailure, nil
		}
	} else if n.hasUpdatePre() {
		ok, err := tt.preconditions(n, phaseUpdate)
		if err != nil {
			return StatusInvalid, tt.fatal(n, err)
		}
		if !ok {
			if err := tt.abort(i); err != nil {
				return StatusInvalid, tt.fatal(n, err)
			}
			return StatusFailure, nil
		}
	}

	st, err := behaviors[n.Kind].update(tt, n, t)
	if err != nil {
		return StatusInvalid, tt.fatal(n, err)
	}

	switch st {
	case StatusRunning:
		t.status = StatusRunning
	case StatusSuccess, StatusFailure:
		t.status = st
		if err := tt.exit(n, t, st); err != nil {
			return StatusInvalid, tt.fatal(n, err)
		}
	default:
		return StatusInvalid, tt.fatal(n, fmt.Errorf("%w: update returned %s", ErrCorruptedTree, st))
	}
	return st, nil
}

func (tt *TaskTree) enter(n *NodeDef, t *task) (bool, error) {
	t.active = none
	ok, err := tt.preconditions(n, phaseEnter)
	if err != nil || !ok {
		return false, err
	}
	if b := behaviors[n.Kind]; b.enter != nil {
		return b.enter(tt, n, t)
	}
	return true, nil
}

func (tt *TaskTree) exit(n *NodeDef, t *task, st Status) error {
	var err error
	if b := behaviors[n.Kind]; b.exit != nil {
		err = b.exit(tt, n, t, st)
	}
	t.active = none
	return errors.Join(err, tt.effects(n, st))
}

// abort stops a running subtree innermost first. Aborted tasks exit with
// Failure, exactly as if they had failed on their own.
func (tt *TaskTree) abort(i int) error {
	t := &tt.arena.tasks[i]
	if !t.live || t.status != StatusRunning {
		return nil
	}
	n := tt.tree.nodes[i]
	var errs []error
	for _, c := range n.Children {
		errs = append(errs, tt.abort(c))
	}
	t.status = StatusFailure
	errs = append(errs, tt.exit(n, t, StatusFailure))
	return errors.Join(errs...)
}

// Evaluate runs a condition node immediately, outside the task lifecycle.
func (tt *TaskTree) Evaluate(nodeID string) (bool, error) {
	if tt.tree == nil {
		return false, ErrUnbound
	}
	n, ok := tt.tree.Lookup(nodeID)
	if !ok {
		return false, fmt.Errorf("node %q: %w", nodeID, ErrInvalidConfig)
	}
	if !n.Kind.IsCondition() {
		return false, fmt.Errorf("node %q is %s: %w", nodeID, n.Kind, ErrNotCondition)
	}
	return tt.evaluate(n)
}
