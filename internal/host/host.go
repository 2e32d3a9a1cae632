// Package host drives many agents over the trees of one workspace. Each agent
// lives in a slot whose lock serialises everything touching its task tree, so
// distinct agents can tick in parallel.
package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/core/events/bus"
	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/core/observability/metrics"
	"github.com/zeusync/behave/pkg/concurrent"
)

var (
	ErrAgentBound    = errors.New("agent already bound")
	ErrAgentNotBound = errors.New("agent not bound")
)

// Config controls the frame loop.
type Config struct {
	Workers       int           `mapstructure:"workers"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
}

// DefaultConfig ticks on every CPU ten times a second.
func DefaultConfig() Config {
	return Config{Workers: runtime.GOMAXPROCS(0), FrameInterval: 100 * time.Millisecond}
}

// AgentInfo is a point-in-time view of one slot.
type AgentInfo struct {
	ID      string   `json:"id"`
	Tree    string   `json:"tree"`
	Status  string   `json:"status"`
	Frames  uint64   `json:"frames"`
	Active  []string `json:"active,omitempty"`
	Pending int      `json:"pending_events,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Frame summarises one TickAll pass.
type Frame struct {
	Number   uint64        `json:"frame"`
	Duration time.Duration `json:"duration"`
	Agents   []AgentInfo   `json:"agents"`
}

type event struct {
	id      string
	name    string
	payload any
}

type slot struct {
	mu    sync.Mutex
	id    string
	tt    *bt.TaskTree
	tree  string
	inbox []event
}

type Option func(*Host)

func WithLogger(l log.Log) Option {
	return func(h *Host) { h.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(h *Host) { h.metrics = r }
}

// WithBus publishes agent and tree lifecycle events to b.
func WithBus(b *bus.Bus) Option {
	return func(h *Host) { h.bus = b }
}

// Host owns the agents bound to a workspace.
type Host struct {
	cfg     Config
	ws      *bt.Workspace
	log     log.Log
	metrics metrics.Recorder
	bus     *bus.Bus

	mu    sync.RWMutex
	slots map[string]*slot
	frame uint64

	listenersMu  sync.Mutex
	listeners    map[int]func(Frame)
	nextListener int
}

// New creates a host. Zero config fields fall back to DefaultConfig.
func New(ws *bt.Workspace, cfg Config, opts ...Option) *Host {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = def.FrameInterval
	}
	h := &Host{
		cfg:       cfg,
		ws:        ws,
		log:       log.NewNop(),
		metrics:   metrics.Nop{},
		slots:     make(map[string]*slot),
		listeners: make(map[int]func(Frame)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Workspace returns the workspace trees are bound from.
func (h *Host) Workspace() *bt.Workspace { return h.ws }

// Config returns the effective configuration.
func (h *Host) Config() Config { return h.cfg }

// Bind attaches agent to treeID. Agent ids are unique per host.
func (h *Host) Bind(agent binding.Agent, treeID string) error {
	if agent == nil {
		return fmt.Errorf("%w: nil agent", bt.ErrInvalidConfig)
	}
	if err := h.bind(agent, treeID); err != nil {
		return err
	}
	h.publish(bus.New(bus.AgentBound, agent.ID(), treeID, nil))
	return nil
}

func (h *Host) bind(agent binding.Agent, treeID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.slots[agent.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrAgentBound, agent.ID())
	}
	tt, err := h.ws.Bind(agent, treeID)
	if err != nil {
		return err
	}
	h.slots[agent.ID()] = &slot{id: agent.ID(), tt: tt, tree: treeID}
	h.countLocked(treeID)
	return nil
}

// Unbind detaches an agent, aborting whatever it was running.
func (h *Host) Unbind(agentID string) error {
	h.mu.Lock()
	s, ok := h.slots[agentID]
	if ok {
		delete(h.slots, agentID)
		h.countLocked(s.tree)
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotBound, agentID)
	}

	s.mu.Lock()
	s.tt.Unbind()
	s.inbox = nil
	s.mu.Unlock()
	h.publish(bus.New(bus.AgentUnbound, agentID, s.tree, nil))
	return nil
}

// UnloadTree unbinds every agent on treeID and removes the tree from the
// workspace.
func (h *Host) UnloadTree(treeID string) error {
	h.mu.Lock()
	var victims []*slot
	for id, s := range h.slots {
		if s.tree == treeID {
			victims = append(victims, s)
			delete(h.slots, id)
		}
	}
	h.countLocked(treeID)
	h.mu.Unlock()

	for _, s := range victims {
		s.mu.Lock()
		s.tt.Unbind()
		s.mu.Unlock()
		h.publish(bus.New(bus.AgentUnbound, s.id, treeID, nil))
	}
	if err := h.ws.Unload(treeID); err != nil {
		return err
	}
	h.publish(bus.New(bus.TreeUnloaded, "", treeID, len(victims)))
	h.log.Info("tree unloaded by host", log.Tree(treeID), log.Int("agents", len(victims)))
	return nil
}

// countLocked publishes the number of agents on tree. h.mu must be held.
func (h *Host) countLocked(tree string) {
	n := 0
	for _, s := range h.slots {
		if s.tree == tree {
			n++
		}
	}
	h.metrics.SetAgents(tree, n)
}

// publish must not be called with any host or slot lock held; handlers may
// call back into the host.
func (h *Host) publish(e bus.Event) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(e); err != nil {
		h.log.Warn("lifecycle handler failed", log.String("event", e.Type), log.Agent(e.Agent), log.Error(err))
	}
}

func (h *Host) slot(agentID string) (*slot, error) {
	h.mu.RLock()
	s, ok := h.slots[agentID]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotBound, agentID)
	}
	return s, nil
}

// FireEvent queues an event for delivery right before the agent's next tick
// and returns its id.
func (h *Host) FireEvent(agentID, name string, payload any) (string, error) {
	s, err := h.slot(agentID)
	if err != nil {
		return "", err
	}
	ev := event{id: uuid.NewString(), name: name, payload: payload}
	s.mu.Lock()
	s.inbox = append(s.inbox, ev)
	s.mu.Unlock()
	return ev.id, nil
}

// Tick delivers the agent's pending events and ticks it once.
func (h *Host) Tick(agentID string) (bt.Status, error) {
	s, err := h.slot(agentID)
	if err != nil {
		return bt.StatusInvalid, err
	}
	st, _, err := h.tick(s)
	return st, err
}

func (h *Host) tick(s *slot) (bt.Status, AgentInfo, error) {
	s.mu.Lock()
	st, info, failed, err := h.tickLocked(s)
	s.mu.Unlock()
	if failed {
		h.publish(bus.New(bus.AgentFailed, s.id, s.tree, err.Error()))
	}
	return st, info, err
}

// tickLocked reports failed when this tick poisoned the tree.
func (h *Host) tickLocked(s *slot) (bt.Status, AgentInfo, bool, error) {
	if s.tt.Tree() == nil {
		return bt.StatusInvalid, AgentInfo{}, false, fmt.Errorf("%w: %s", ErrAgentNotBound, s.id)
	}

	poisoned := s.tt.Err() != nil
	inbox := s.inbox
	s.inbox = nil
	for _, ev := range inbox {
		if _, err := s.tt.FireEvent(ev.name, ev.payload); err != nil {
			h.log.Warn("event delivery failed", log.Agent(s.id), log.String("event", ev.name),
				log.String("event_id", ev.id), log.Error(err))
		}
	}

	start := time.Now()
	st, err := s.tt.Tick()
	h.metrics.ObserveTick(s.tree, st.String(), time.Since(start))
	failed := err != nil && !poisoned
	if failed {
		h.metrics.Fatal(s.tree)
		h.log.Error("agent tick failed", log.Agent(s.id), log.Tree(s.tree), log.Error(err))
	}
	return st, s.infoLocked(), failed, err
}

func (s *slot) infoLocked() AgentInfo {
	info := AgentInfo{
		ID:      s.id,
		Tree:    s.tree,
		Status:  s.tt.Status().String(),
		Frames:  s.tt.Frame(),
		Active:  s.tt.ActivePath(),
		Pending: len(s.inbox),
	}
	if err := s.tt.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// sorted returns the slots in agent id order.
func (h *Host) sorted() []*slot {
	h.mu.RLock()
	out := make([]*slot, 0, len(h.slots))
	for _, s := range h.slots {
		out = append(out, s)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// TickAll ticks every bound agent once on the worker pool. Failing agents do
// not stop the frame; their errors are joined.
func (h *Host) TickAll(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	slots := h.sorted()
	infos := make([]AgentInfo, len(slots))

	start := time.Now()
	err := concurrent.ForEach(indices(len(slots)), h.cfg.Workers, func(i int) error {
		_, info, err := h.tick(slots[i])
		if errors.Is(err, ErrAgentNotBound) {
			return nil
		}
		infos[i] = info
		return err
	})
	live := infos[:0]
	for _, info := range infos {
		if info.ID != "" {
			live = append(live, info)
		}
	}

	h.mu.Lock()
	h.frame++
	f := Frame{Number: h.frame, Duration: time.Since(start), Agents: live}
	h.mu.Unlock()

	h.log.Debug("frame", log.Int64("frame", int64(f.Number)), log.Int("agents", len(live)),
		log.Duration("duration", f.Duration))
	h.notify(f)
	return f, err
}

func indices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Run ticks all agents every frame interval until ctx is done. Tick errors
// are logged and do not stop the loop.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.FrameInterval)
	defer ticker.Stop()

	h.log.Info("host started", log.Int("workers", h.cfg.Workers), log.Duration("interval", h.cfg.FrameInterval))
	for {
		select {
		case <-ctx.Done():
			h.log.Info("host stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := h.TickAll(ctx); err != nil && ctx.Err() == nil {
				h.log.Debug("frame had failing agents", log.Error(err))
			}
		}
	}
}

// OnFrame registers fn to receive every frame summary. fn runs on the
// goroutine that called TickAll and must not block. The returned function
// removes the listener.
func (h *Host) OnFrame(fn func(Frame)) (remove func()) {
	h.listenersMu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = fn
	h.listenersMu.Unlock()

	return func() {
		h.listenersMu.Lock()
		delete(h.listeners, id)
		h.listenersMu.Unlock()
	}
}

func (h *Host) notify(f Frame) {
	h.listenersMu.Lock()
	fns := make([]func(Frame), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.listenersMu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
}

// Agents lists every bound agent in id order.
func (h *Host) Agents() []AgentInfo {
	slots := h.sorted()
	out := make([]AgentInfo, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if s.tt.Tree() != nil {
			out = append(out, s.infoLocked())
		}
		s.mu.Unlock()
	}
	return out
}

// Agent returns one agent's info.
func (h *Host) Agent(agentID string) (AgentInfo, error) {
	s, err := h.slot(agentID)
	if err != nil {
		return AgentInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tt.Tree() == nil {
		return AgentInfo{}, fmt.Errorf("%w: %s", ErrAgentNotBound, agentID)
	}
	return s.infoLocked(), nil
}

// Frame is the number of completed TickAll passes.
func (h *Host) Frame() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frame
}

// Close unbinds every agent.
func (h *Host) Close() {
	for _, s := range h.sorted() {
		_ = h.Unbind(s.id)
	}
}
