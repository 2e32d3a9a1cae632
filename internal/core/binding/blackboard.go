package binding

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// Blackboard is the default per-agent property store.
// It is safe for concurrent use so hosts can inspect it while the agent ticks.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any

	lastUpdated map[string]time.Time
	version     int64
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{
		data:        make(map[string]any),
		lastUpdated: make(map[string]time.Time),
	}
}

// Set stores a value under key.
func (bb *Blackboard) Set(key string, value any) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	bb.data[key] = value
	bb.lastUpdated[key] = time.Now()
	bb.version++
}

// Get retrieves the value stored under key.
func (bb *Blackboard) Get(key string) (any, bool) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	value, exists := bb.data[key]
	return value, exists
}

// GetInt retrieves an int value, accepting the float64 produced by JSON decoding.
func (bb *Blackboard) GetInt(key string) (int, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetBool retrieves a boolean value.
func (bb *Blackboard) GetBool(key string) (bool, bool) {
	value, exists := bb.Get(key)
	if !exists {
		return false, false
	}

	b, ok := value.(bool)
	return b, ok
}

// Has checks if a key exists.
func (bb *Blackboard) Has(key string) bool {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	_, exists := bb.data[key]
	return exists
}

// Delete removes a key.
func (bb *Blackboard) Delete(key string) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	delete(bb.data, key)
	delete(bb.lastUpdated, key)
	bb.version++
}

// Keys returns all keys in sorted order.
func (bb *Blackboard) Keys() []string {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	keys := make([]string, 0, len(bb.data))
	for key := range bb.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Version increases with every mutation.
func (bb *Blackboard) Version() int64 {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	return bb.version
}

// Snapshot returns a shallow copy of the stored values.
func (bb *Blackboard) Snapshot() map[string]any {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	return maps.Clone(bb.data)
}

// Clear removes all data.
func (bb *Blackboard) Clear() {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	bb.data = make(map[string]any)
	bb.lastUpdated = make(map[string]time.Time)
	bb.version++
}

type blackboardExport struct {
	Data        map[string]any       `json:"data"`
	LastUpdated map[string]time.Time `json:"last_updated"`
	Version     int64                `json:"version"`
}

// ToJSON exports the blackboard.
func (bb *Blackboard) ToJSON() ([]byte, error) {
	bb.mu.RLock()
	defer bb.mu.RUnlock()

	return json.Marshal(blackboardExport{
		Data:        bb.data,
		LastUpdated: bb.lastUpdated,
		Version:     bb.version,
	})
}

// FromJSON replaces the blackboard contents with an export produced by ToJSON.
func (bb *Blackboard) FromJSON(data []byte) error {
	var export blackboardExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to unmarshal blackboard data: %w", err)
	}
	if export.Data == nil {
		export.Data = make(map[string]any)
	}
	if export.LastUpdated == nil {
		export.LastUpdated = make(map[string]time.Time)
	}

	bb.mu.Lock()
	defer bb.mu.Unlock()

	bb.data = export.Data
	bb.lastUpdated = export.LastUpdated
	bb.version = export.Version
	return nil
}
