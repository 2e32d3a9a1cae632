// Package pabt plans htn task nodes with the PA-BT algorithm. A Factory holds
// the host's action domain; every htn node names a goal as a list of property
// requirements, and each activation of the node builds and ticks a fresh plan.
package pabt

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	gbt "github.com/joeycumines/go-behaviortree"
	gopabt "github.com/joeycumines/go-pabt"
	"github.com/mitchellh/mapstructure"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
)

var (
	ErrDuplicateAction = errors.New("pabt: duplicate action")
	ErrUnknownAction   = errors.New("pabt: unknown action")
	ErrEmptyGoal       = errors.New("pabt: goal has no requirements")
)

// Requirement holds when the property's value compares true against Value.
type Requirement struct {
	Prop  string            `mapstructure:"prop"`
	Op    binding.CompareOp `mapstructure:"op"`
	Value any               `mapstructure:"value"`
}

// Action is one step the planner may schedule. Effects are the property
// values the action promises to establish. Run performs the step; when it is
// nil the effects are written directly and the action succeeds.
type Action struct {
	Name    string             `mapstructure:"name"`
	Pre     []Requirement      `mapstructure:"pre"`
	Effects map[string]any     `mapstructure:"effects"`
	Run     binding.MethodFunc `mapstructure:"-"`
}

// Factory compiles htn task nodes against a registered action domain.
type Factory struct {
	mu      sync.RWMutex
	actions map[string]Action
}

var _ bt.PlannerFactory = (*Factory)(nil)

// NewFactory returns a factory holding the given actions.
func NewFactory(actions ...Action) (*Factory, error) {
	f := &Factory{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if err := f.Register(a); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Register adds an action. Trees compiled earlier keep the domain they saw.
func (f *Factory) Register(a Action) error {
	if a.Name == "" {
		return fmt.Errorf("%w: action name is empty", bt.ErrInvalidConfig)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actions[a.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, a.Name)
	}
	f.actions[a.Name] = a
	return nil
}

// Actions lists the registered action names.
func (f *Factory) Actions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.actions))
	for name := range f.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type options struct {
	Goal    []Requirement `mapstructure:"goal"`
	Actions []string      `mapstructure:"actions"`
}

// Compile reads `goal` and the optional `actions` allow-list from the node
// properties and resolves every property the plan can touch.
func (f *Factory) Compile(node *bt.NodeDef, props map[string]any, r binding.Resolver) (bt.PlannerTemplate, error) {
	var o options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(props); err != nil {
		return nil, fmt.Errorf("%w: %v", bt.ErrInvalidConfig, err)
	}
	if len(o.Goal) == 0 {
		return nil, ErrEmptyGoal
	}

	tpl := &template{node: node.ID, goal: o.Goal, props: make(map[string]binding.Property)}

	f.mu.RLock()
	names := o.Actions
	if len(names) == 0 {
		for name := range f.actions {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		a, ok := f.actions[name]
		if !ok {
			f.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
		}
		tpl.actions = append(tpl.actions, a)
	}
	f.mu.RUnlock()

	bind := func(name string) error {
		if _, ok := tpl.props[name]; ok {
			return nil
		}
		p, err := r.Property(name)
		if err != nil {
			return err
		}
		tpl.props[name] = p
		return nil
	}
	for _, req := range tpl.goal {
		if err := bind(req.Prop); err != nil {
			return nil, fmt.Errorf("goal: %w", err)
		}
	}
	for _, a := range tpl.actions {
		for _, req := range a.Pre {
			if err := bind(req.Prop); err != nil {
				return nil, fmt.Errorf("action %s: %w", a.Name, err)
			}
		}
		for key := range a.Effects {
			if err := bind(key); err != nil {
				return nil, fmt.Errorf("action %s: %w", a.Name, err)
			}
		}
	}
	return tpl, nil
}

type template struct {
	node    string
	goal    []Requirement
	actions []Action
	props   map[string]binding.Property
}

func (t *template) NewPlanner() bt.Planner { return &planner{tpl: t} }

// planner owns one plan for one activation of its node.
type planner struct {
	tpl  *template
	root gbt.Node
}

func (p *planner) Init(agent binding.Agent, _ *bt.NodeDef) error {
	s := &state{agent: agent, props: p.tpl.props}
	for _, a := range p.tpl.actions {
		s.actions = append(s.actions, s.action(a))
	}
	plan, err := gopabt.INew(s, conditions(p.tpl.goal))
	if err != nil {
		return fmt.Errorf("plan %s: %w", p.tpl.node, err)
	}
	p.root = plan.Node()
	return nil
}

func (p *planner) Update() (bt.Status, error) {
	if p.root == nil {
		return bt.StatusInvalid, errors.New("planner is not initialised")
	}
	st, err := p.root.Tick()
	if err != nil {
		return bt.StatusInvalid, err
	}
	switch st {
	case gbt.Running:
		return bt.StatusRunning, nil
	case gbt.Success:
		return bt.StatusSuccess, nil
	case gbt.Failure:
		return bt.StatusFailure, nil
	default:
		return bt.StatusInvalid, fmt.Errorf("plan returned status %v", st)
	}
}

func (p *planner) Uninit() { p.root = nil }

// state exposes the agent's bound properties to the planner.
type state struct {
	agent   binding.Agent
	props   map[string]binding.Property
	actions []*action
}

var _ gopabt.IState = (*state)(nil)

func (s *state) Variable(key any) (any, error) {
	name, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", key)
	}
	p, ok := s.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: property %q is not part of the plan", binding.ErrUnresolved, name)
	}
	return p.Get(s.agent)
}

// Actions returns the actions with an effect that satisfies failed, in name
// order. A nil condition selects every action.
func (s *state) Actions(failed gopabt.Condition) ([]gopabt.IAction, error) {
	var out []gopabt.IAction
	for _, a := range s.actions {
		if failed == nil {
			out = append(out, a)
			continue
		}
		for _, e := range a.effects {
			if e.Key() == failed.Key() && failed.Match(e.Value()) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (s *state) action(spec Action) *action {
	a := &action{conditions: []gopabt.IConditions{}}
	if len(spec.Pre) > 0 {
		a.conditions = append(a.conditions, conditions(spec.Pre)[0])
	}
	keys := make([]string, 0, len(spec.Effects))
	for key := range spec.Effects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		a.effects = append(a.effects, effect{key: key, value: spec.Effects[key]})
	}

	a.node = gbt.New(func([]gbt.Node) (gbt.Status, error) {
		if spec.Run == nil {
			for _, key := range keys {
				if err := s.props[key].Set(s.agent, spec.Effects[key]); err != nil {
					return gbt.Failure, err
				}
			}
			return gbt.Success, nil
		}
		out, err := spec.Run(s.agent)
		if err != nil {
			return gbt.Failure, fmt.Errorf("action %s: %w", spec.Name, err)
		}
		return runStatus(out), nil
	})
	return a
}

// runStatus maps an action result like the action leaf does: a status or a
// bool is honoured, anything else counts as success.
func runStatus(out any) gbt.Status {
	switch v := out.(type) {
	case bt.Status:
		switch v {
		case bt.StatusRunning:
			return gbt.Running
		case bt.StatusFailure:
			return gbt.Failure
		}
	case bool:
		if !v {
			return gbt.Failure
		}
	}
	return gbt.Success
}

// conditions turns requirements into a single conjunctive group.
func conditions(reqs []Requirement) []gopabt.IConditions {
	group := make(gopabt.IConditions, 0, len(reqs))
	for _, r := range reqs {
		group = append(group, condition{req: r})
	}
	return []gopabt.IConditions{group}
}

type condition struct{ req Requirement }

func (c condition) Key() any { return c.req.Prop }

func (c condition) Match(v any) bool {
	ok, err := binding.Compare(c.req.Op, v, c.req.Value)
	return err == nil && ok
}

type effect struct {
	key   string
	value any
}

func (e effect) Key() any   { return e.key }
func (e effect) Value() any { return e.value }

type action struct {
	conditions []gopabt.IConditions
	effects    gopabt.Effects
	node       gbt.Node
}

func (a *action) Conditions() []gopabt.IConditions { return a.conditions }
func (a *action) Effects() gopabt.Effects           { return a.effects }
func (a *action) Node() gbt.Node                     { return a.node }
