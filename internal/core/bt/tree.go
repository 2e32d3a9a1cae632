package bt

import (
	"github.com/zeusync/behave/pkg/generic"
)

const none = -1

// NodeDef is one immutable node of a loaded Tree. Children are indices into
// the owning tree's node arena.
type NodeDef struct {
	ID       string
	Kind     Kind
	Index    int
	Parent   int
	Children []int
	// Props is the raw configuration, kept for planners and inspection.
	Props map[string]any

	pre    []*attachment
	post   []*attachment
	events []eventHandler
	cfg    any
}

// hasUpdatePre reports whether any pre hook is re-checked on update.
func (n *NodeDef) hasUpdatePre() bool {
	for _, a := range n.pre {
		if a.phase&phaseUpdate != 0 {
			return true
		}
	}
	return false
}

// Tree is a loaded, validated node graph shared read-only by every agent bound to it.
type Tree struct {
	ID    string
	nodes []*NodeDef
	byID  map[string]int
	htn   bool

	arenas *generic.Pool[*arena]
}

func newTree(id string) *Tree {
	t := &Tree{ID: id, byID: make(map[string]int)}
	t.arenas = generic.NewResetPool(
		func() *arena { return &arena{tasks: make([]task, len(t.nodes))} },
		func(a *arena) { clear(a.tasks) },
	)
	return t
}

// Root returns the root node.
func (t *Tree) Root() *NodeDef { return t.nodes[0] }

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at index i.
func (t *Tree) Node(i int) *NodeDef { return t.nodes[i] }

// Lookup finds a node by its id.
func (t *Tree) Lookup(id string) (*NodeDef, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// HTN reports whether the tree contains planner-backed task nodes.
func (t *Tree) HTN() bool { return t.htn }

// Walk visits nodes in definition order (pre-order).
func (t *Tree) Walk(fn func(n *NodeDef) bool) {
	for _, n := range t.nodes {
		if !fn(n) {
			return
		}
	}
}

// arena holds the task instances of one agent, parallel to Tree.nodes.
type arena struct {
	tasks []task
}

func (t *Tree) acquire() *arena {
	a := t.arenas.Get()
	if len(a.tasks) != len(t.nodes) {
		a.tasks = make([]task, len(t.nodes))
	}
	return a
}

func (t *Tree) release(a *arena) { t.arenas.Put(a) }
