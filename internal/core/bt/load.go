package bt

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/zeusync/behave/internal/core/binding"
)

var (
	valueType    = reflect.TypeOf((*binding.Value)(nil)).Elem()
	propertyType = reflect.TypeOf((*binding.Property)(nil)).Elem()
)

// loader turns a Definition into a Tree. All names are resolved here; nothing
// is looked up again while ticking.
type loader struct {
	ws       *Workspace
	resolver binding.Resolver
	snap     binding.Snapshotter
	tree     *Tree
	specs    []*NodeSpec
	errs     []error
}

func (l *loader) fail(node string, err error) {
	l.errs = append(l.errs, &ConfigError{Tree: l.tree.ID, Node: node, Err: err})
}

func (w *Workspace) compile(def *Definition) (*Tree, error) {
	if def == nil || def.Root == nil {
		id := ""
		if def != nil {
			id = def.ID
		}
		return nil, &ConfigError{Tree: id, Err: ErrEmptyDefinition}
	}
	if def.ID == "" {
		return nil, &ConfigError{Err: fmt.Errorf("%w: tree id is empty", ErrInvalidConfig)}
	}

	l := &loader{ws: w, resolver: w.resolver, tree: newTree(def.ID)}
	l.snap, _ = w.resolver.(binding.Snapshotter)

	l.flatten(def.Root, none)
	for i, n := range l.tree.nodes {
		if n.Kind == KindInvalid {
			continue
		}
		if err := l.compileNode(n, l.specs[i]); err != nil {
			l.fail(n.ID, err)
		}
	}
	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return l.tree, nil
}

// flatten lays nodes out in pre-order so a node's index is smaller than the
// indices of all its descendants.
func (l *loader) flatten(spec *NodeSpec, parent int) int {
	idx := len(l.tree.nodes)
	if spec == nil {
		spec = &NodeSpec{Kind: "noop"}
		l.fail(fmt.Sprintf("#%d", idx), fmt.Errorf("%w: nil node", ErrInvalidConfig))
	}

	kind, err := ParseKind(spec.Kind)
	id := spec.ID
	if id == "" {
		id = fmt.Sprintf("%s#%d", strings.ToLower(spec.Kind), idx)
	}
	if err != nil {
		l.fail(id, err)
	}
	if _, dup := l.tree.byID[id]; dup {
		l.fail(id, ErrDuplicateNode)
	} else {
		l.tree.byID[id] = idx
	}

	n := &NodeDef{ID: id, Kind: kind, Index: idx, Parent: parent, Props: spec.Props}
	l.tree.nodes = append(l.tree.nodes, n)
	l.specs = append(l.specs, spec)
	for _, c := range spec.Children {
		n.Children = append(n.Children, l.flatten(c, idx))
	}
	return idx
}

func (l *loader) compileNode(n *NodeDef, spec *NodeSpec) error {
	info := kinds[n.Kind]
	if n.Kind != KindTask {
		if c := len(n.Children); c < info.minChildren || (info.maxChildren >= 0 && c > info.maxChildren) {
			return fmt.Errorf("%w: %s has %d children", ErrChildCount, n.Kind, c)
		}
	}
	if n.Kind == KindAnd || n.Kind == KindOr || n.Kind == KindNot {
		for _, c := range n.Children {
			if child := l.tree.nodes[c]; child.Kind != KindInvalid && !child.Kind.IsCondition() {
				return fmt.Errorf("%w: %s child %q is %s", ErrInvalidChild, n.Kind, child.ID, child.Kind)
			}
		}
	}

	if err := l.compileKind(n); err != nil {
		return err
	}

	for _, s := range spec.Pre {
		a, err := l.attachment(s, true)
		if err != nil {
			return fmt.Errorf("pre: %w", err)
		}
		n.pre = append(n.pre, a)
	}
	for _, s := range spec.Post {
		a, err := l.attachment(s, false)
		if err != nil {
			return fmt.Errorf("post: %w", err)
		}
		n.post = append(n.post, a)
	}
	for _, e := range spec.Events {
		h, err := l.event(e)
		if err != nil {
			return err
		}
		n.events = append(n.events, h)
	}
	return nil
}

func (l *loader) compileKind(n *NodeDef) error {
	switch n.Kind {
	case KindStochasticSequence, KindStochasticSelector:
		var o stochasticOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		n.cfg = &stochasticConfig{interrupt: o.Interrupt}

	case KindProbabilitySelector:
		var o probabilityOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if len(o.Weights) > len(n.Children) {
			return fmt.Errorf("%w: %d weights for %d children", ErrInvalidConfig, len(o.Weights), len(n.Children))
		}
		n.cfg = &probabilityConfig{weights: o.Weights}

	case KindParallel:
		var o parallelOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		cfg := &parallelConfig{}
		var err error
		if cfg.failure, err = parsePolicy(o.Failure, policyOne); err != nil {
			return err
		}
		if cfg.success, err = parsePolicy(o.Success, policyAll); err != nil {
			return err
		}
		switch o.ChildFinish {
		case "", "once":
		case "loop":
			cfg.loop = true
		default:
			return fmt.Errorf("%w: child_finish %q", ErrInvalidConfig, o.ChildFinish)
		}
		n.cfg = cfg

	case KindInterval:
		var o intervalOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Count == nil {
			return required("count")
		}
		if o.Front == nil {
			o.Front = binding.Const(false)
		}
		n.cfg = &intervalConfig{count: o.Count, front: o.Front}

	case KindLoop, KindLoopUntil:
		var o loopOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Count == nil {
			o.Count = binding.Const(-1)
		}
		if o.Until == StatusInvalid {
			o.Until = StatusSuccess
		}
		if !o.Until.Terminal() {
			return fmt.Errorf("%w: until must be success or failure", ErrInvalidConfig)
		}
		n.cfg = &loopConfig{count: o.Count, until: o.Until}

	case KindCountLimit:
		var o countOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Count == nil {
			return required("count")
		}
		n.cfg = &countConfig{count: o.Count}

	case KindFrames:
		var o framesOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Frames == nil {
			return required("frames")
		}
		n.cfg = &framesConfig{frames: o.Frames}

	case KindCondition:
		var o conditionOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Left == nil || o.Right == nil {
			return required("left and right")
		}
		n.cfg = &conditionConfig{left: o.Left, op: o.Operator, right: o.Right}

	case KindExpression:
		var o expressionOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Expr == "" {
			return required("expr")
		}
		program, err := binding.CompileExpr(o.Expr, l.snap, true)
		if err != nil {
			return err
		}
		n.cfg = &expressionConfig{program: program}

	case KindTask:
		var o taskOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if !o.HTN {
			if len(n.Children) != 1 {
				return fmt.Errorf("%w: task has %d children", ErrChildCount, len(n.Children))
			}
			if len(o.Planner) > 0 {
				return fmt.Errorf("%w: planner settings on a plain task", ErrInvalidConfig)
			}
			n.cfg = &taskConfig{}
			return nil
		}
		if l.ws.planners == nil {
			return ErrNoPlanner
		}
		tpl, err := l.ws.planners.Compile(n, o.Planner, l.resolver)
		if err != nil {
			return fmt.Errorf("planner: %w", err)
		}
		l.tree.htn = true
		n.cfg = &taskConfig{htn: true, template: tpl}

	case KindAction:
		var o actionOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Method == "" {
			return required("method")
		}
		m, err := l.resolver.Method(o.Method)
		if err != nil {
			return err
		}
		if o.Result == StatusInvalid {
			o.Result = StatusSuccess
		}
		n.cfg = &actionConfig{call: binding.Call(m, o.Args...), result: o.Result}

	case KindAssignment, KindCompute:
		var o AttachmentSpec
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if n.Kind == KindAssignment && o.Operator == "" {
			o.Operator = "assign"
		}
		a, err := l.attachment(o, false)
		if err != nil {
			return err
		}
		if want := map[Kind]opClass{KindAssignment: opAssign, KindCompute: opCompute}[n.Kind]; a.class != want {
			return fmt.Errorf("%w: %s needs a %s operator, got %q", ErrInvalidConfig, n.Kind, want, o.Operator)
		}
		n.cfg = a

	case KindWait:
		var o waitOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Frames == nil {
			return required("frames")
		}
		n.cfg = &waitConfig{frames: o.Frames}

	case KindWaitEvent:
		var o waitEventOptions
		if err := l.decode(n.Props, &o); err != nil {
			return err
		}
		if o.Event == "" {
			return required("event")
		}
		n.cfg = &waitEventConfig{event: o.Event}

	default:
		// kinds without configuration still reject stray properties
		return l.decode(n.Props, &struct{}{})
	}
	return nil
}

func required(what string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidConfig, what)
}

// decode maps raw properties onto an options struct. Values and properties are
// resolved by the decode hook.
func (l *loader) decode(props map[string]any, out any) error {
	var hookErr error
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			l.bindHook(&hookErr),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		if hookErr != nil {
			return hookErr
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (l *loader) bindHook(failed *error) mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		var (
			v   any
			err error
		)
		switch to {
		case valueType:
			v, err = l.value(data)
		case propertyType:
			v, err = l.property(data)
		default:
			return data, nil
		}
		if err != nil && *failed == nil {
			*failed = err
		}
		return v, err
	}
}

// value resolves the value syntax: a scalar is a constant, {prop: name} reads
// a property, {call: name, args: [...]} calls a method and {expr: src} runs an
// expression over the agent snapshot.
func (l *loader) value(raw any) (binding.Value, error) {
	switch v := raw.(type) {
	case binding.Value:
		return v, nil
	case map[string]any:
		if name, ok := v["prop"]; ok {
			return l.property(name)
		}
		if name, ok := v["call"]; ok {
			return l.call(name, v["args"])
		}
		if src, ok := v["expr"]; ok {
			s, ok := src.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expr must be a string", ErrInvalidConfig)
			}
			return binding.CompileExpr(s, l.snap, false)
		}
		if c, ok := v["const"]; ok {
			return binding.Const(c), nil
		}
	}
	return binding.Const(raw), nil
}

func (l *loader) property(raw any) (binding.Property, error) {
	switch v := raw.(type) {
	case binding.Property:
		return v, nil
	case string:
		return l.resolver.Property(v)
	case map[string]any:
		if name, ok := v["prop"].(string); ok {
			return l.resolver.Property(name)
		}
	}
	return nil, fmt.Errorf("%w: %v is not a property reference", ErrInvalidConfig, raw)
}

func (l *loader) call(rawName, rawArgs any) (binding.Value, error) {
	name, ok := rawName.(string)
	if !ok {
		return nil, fmt.Errorf("%w: call name must be a string", ErrInvalidConfig)
	}
	m, err := l.resolver.Method(name)
	if err != nil {
		return nil, err
	}
	var list []any
	switch a := rawArgs.(type) {
	case nil:
	case []any:
		list = a
	default:
		list = []any{a}
	}
	args := make([]binding.Value, len(list))
	for i, a := range list {
		if args[i], err = l.value(a); err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", name, i, err)
		}
	}
	return binding.Call(m, args...), nil
}

// operand resolves the left side of an attachment. A bare string names a
// method for calls and a property otherwise.
func (l *loader) operand(raw any, class opClass) (binding.Value, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		if class == opNone {
			return l.call(s, nil)
		}
		return l.property(s)
	}
	return l.value(raw)
}

func (l *loader) attachment(s AttachmentSpec, pre bool) (*attachment, error) {
	a := &attachment{}
	op := strings.ToLower(strings.TrimSpace(s.Operator))
	switch op {
	case "", "none":
		a.class = opNone
	case "assign", ":=":
		a.class = opAssign
	default:
		if ar, err := binding.ParseArithOp(op); err == nil {
			a.class, a.arith = opCompute, ar
		} else if c, err := binding.ParseCompareOp(op); err == nil {
			a.class, a.cmp = opCompare, c
		} else {
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidConfig, s.Operator)
		}
	}

	var err error
	if pre {
		a.phase, err = parsePrePhase(s.Phase)
	} else {
		a.phase, err = parsePostPhase(s.Phase)
	}
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(s.Combine) {
	case "", "and":
	case "or":
		a.or = true
	default:
		return nil, fmt.Errorf("%w: combine %q", ErrInvalidConfig, s.Combine)
	}

	switch a.class {
	case opNone, opCompare:
		if a.left, err = l.operand(s.Left, a.class); err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
	case opAssign, opCompute:
		if s.Left != nil {
			if a.target, err = l.property(s.Left); err != nil {
				return nil, fmt.Errorf("left: %w", err)
			}
		}
	}
	if s.Right1 != nil {
		if a.right1, err = l.value(s.Right1); err != nil {
			return nil, fmt.Errorf("right1: %w", err)
		}
	}
	if s.Right2 != nil {
		if a.right2, err = l.value(s.Right2); err != nil {
			return nil, fmt.Errorf("right2: %w", err)
		}
	}
	return a, nil
}

func (l *loader) event(e EventSpec) (eventHandler, error) {
	if e.Name == "" {
		return eventHandler{}, fmt.Errorf("%w: event name is empty", ErrInvalidConfig)
	}
	h := eventHandler{name: e.Name, restart: e.Restart}
	if e.Param != "" {
		p, err := l.resolver.Property(e.Param)
		if err != nil {
			return eventHandler{}, fmt.Errorf("event %q: %w", e.Name, err)
		}
		h.param = p
	}
	return h, nil
}
