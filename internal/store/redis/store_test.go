package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/store/redis"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redis.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestSaveLoad(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	bb := binding.NewBlackboard()
	bb.Set("hp", 12)
	bb.Set("name", "orc")
	require.NoError(t, store.Save(ctx, "orc-1", bb))

	restored := binding.NewBlackboard()
	require.NoError(t, store.Load(ctx, "orc-1", restored))
	hp, ok := restored.GetInt("hp")
	require.True(t, ok)
	assert.Equal(t, 12, hp)
	assert.Equal(t, bb.Version(), restored.Version())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orc-1"}, ids)
}

func TestLoadMissing(t *testing.T) {
	store, _ := newStore(t)
	err := store.Load(context.Background(), "ghost", binding.NewBlackboard())
	assert.ErrorIs(t, err, redis.ErrSnapshotNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", binding.NewBlackboard()))
	require.NoError(t, store.Delete(ctx, "a"))

	assert.ErrorIs(t, store.Load(ctx, "a", binding.NewBlackboard()), redis.ErrSnapshotNotFound)
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTTLExpiry(t *testing.T) {
	store, mr := newStore(t, redis.WithTTL(time.Second))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", binding.NewBlackboard()))

	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, store.Load(ctx, "a", binding.NewBlackboard()), redis.ErrSnapshotNotFound)
}

func TestPrefix(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("game:"))
	require.NoError(t, store.Save(context.Background(), "a", binding.NewBlackboard()))
	assert.True(t, mr.Exists("game:a"))
	assert.True(t, mr.Exists("game:index"))
}
