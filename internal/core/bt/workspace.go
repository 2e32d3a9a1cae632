// Package bt is a tick-driven behavior tree engine.
//
// A Workspace loads immutable Trees and binds agents to them. Each binding is
// a TaskTree holding that agent's task state in an arena parallel to the
// tree's nodes; ticking it resumes exactly where the previous tick stopped.
// Running is plain data: nothing blocks and no goroutines are involved.
package bt

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/observability/log"
)

// Workspace owns loaded trees and the collaborators needed to run them. It is
// safe for concurrent use; the TaskTrees it hands out are not.
type Workspace struct {
	mu    sync.RWMutex
	trees map[string]*Tree

	resolver binding.Resolver
	planners PlannerFactory
	seed     uint64
	log      log.Log
}

type Option func(*Workspace)

// WithPlannerFactory enables htn task nodes.
func WithPlannerFactory(f PlannerFactory) Option {
	return func(w *Workspace) { w.planners = f }
}

// WithSeed makes stochastic nodes reproducible. Every agent gets its own
// stream derived from the seed, the tree id and the agent id.
func WithSeed(seed uint64) Option {
	return func(w *Workspace) { w.seed = seed }
}

func WithLogger(l log.Log) Option {
	return func(w *Workspace) { w.log = l }
}

func NewWorkspace(resolver binding.Resolver, opts ...Option) *Workspace {
	w := &Workspace{
		trees:    make(map[string]*Tree),
		resolver: resolver,
		seed:     rand.Uint64(),
		log:      log.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Resolver returns the resolver trees are bound with.
func (w *Workspace) Resolver() binding.Resolver { return w.resolver }

// Validate compiles def without registering it.
func (w *Workspace) Validate(def *Definition) error {
	_, err := w.compile(def)
	return err
}

// Load validates def, resolves every binding and registers the tree.
// Structural problems are reported as *ConfigError values.
func (w *Workspace) Load(def *Definition) (*Tree, error) {
	tree, err := w.compile(def)
	if err != nil {
		w.log.Error("tree rejected", log.Error(err))
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.trees[tree.ID]; exists {
		return nil, &ConfigError{Tree: tree.ID, Err: ErrTreeExists}
	}
	w.trees[tree.ID] = tree
	w.log.Info("tree loaded", log.Tree(tree.ID), log.Int("nodes", tree.Len()), log.Bool("htn", tree.htn))
	return tree, nil
}

// Unload forgets a tree. Agents still bound keep their reference until they
// are unbound.
func (w *Workspace) Unload(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.trees[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTree, id)
	}
	delete(w.trees, id)
	w.log.Info("tree unloaded", log.Tree(id))
	return nil
}

// Tree returns a loaded tree.
func (w *Workspace) Tree(id string) (*Tree, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.trees[id]
	return t, ok
}

// Trees lists loaded tree ids in sorted order.
func (w *Workspace) Trees() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.trees))
	for id := range w.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bind attaches agent to a loaded tree.
func (w *Workspace) Bind(agent binding.Agent, treeID string) (*TaskTree, error) {
	if agent == nil {
		return nil, fmt.Errorf("%w: nil agent", ErrInvalidConfig)
	}
	tree, ok := w.Tree(treeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTree, treeID)
	}

	stream := xxhash.Sum64String(treeID + "\x00" + agent.ID())
	tt := &TaskTree{
		ws:    w,
		tree:  tree,
		agent: agent,
		arena: tree.acquire(),
		rng:   rand.New(rand.NewPCG(w.seed, stream)),
		log:   w.log.With(log.Tree(treeID), log.Agent(agent.ID())),
	}
	tt.log.Debug("agent bound")
	return tt, nil
}
