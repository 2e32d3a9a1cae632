// Package redis persists agent blackboards so a host can restore agents
// across restarts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/zeusync/behave/internal/core/binding"
)

// ErrSnapshotNotFound is returned by Load for an unknown or expired agent.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// noExpiry is the index score of snapshots saved without a TTL (2100-01-01).
const noExpiry = 4102444800

// SnapshotStore keeps one JSON snapshot per agent plus a sorted-set index
// scored by expiry time.
type SnapshotStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*SnapshotStore)

// WithTTL sets the expiration for snapshots.
func WithTTL(ttl time.Duration) Option {
	return func(s *SnapshotStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *SnapshotStore) {
		s.prefix = prefix
	}
}

// New connects to the server at addr.
func New(addr, password string, db int, opts ...Option) *SnapshotStore {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{client: client, prefix: "behave:agent:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnapshotStore) key(agentID string) string { return s.prefix + agentID }

func (s *SnapshotStore) indexKey() string { return s.prefix + "index" }

// Save stores the agent's blackboard.
func (s *SnapshotStore) Save(ctx context.Context, agentID string, bb *binding.Blackboard) error {
	data, err := bb.ToJSON()
	if err != nil {
		return err
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = noExpiry
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(agentID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: agentID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", agentID, err)
	}
	return nil
}

// Load replaces the contents of bb with the stored snapshot.
func (s *SnapshotStore) Load(ctx context.Context, agentID string, bb *binding.Blackboard) error {
	data, err := s.client.Get(ctx, s.key(agentID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, agentID)
		}
		return fmt.Errorf("failed to load snapshot %s: %w", agentID, err)
	}
	return bb.FromJSON(data)
}

// Delete removes the agent's snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, agentID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(agentID))
	pipe.ZRem(ctx, s.indexKey(), agentID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the agents with a live snapshot, pruning expired index entries.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune snapshot index: %w", err)
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return ids, nil
}

// Close closes the client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
