package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/host"
	"github.com/zeusync/behave/internal/server"
)

const sentryYAML = `
id: sentry
root:
  id: post
  kind: sequence
  events:
    - name: relieve
      param: relief
  children:
    - id: stand
      kind: wait_event
      props: {event: relieve}
    - kind: noop
`

func newServer(t *testing.T, token string) (*host.Host, *binding.BasicAgent, string) {
	t.Helper()
	ws := bt.NewWorkspace(binding.NewBlackboardResolver())
	def, err := bt.LoadYAML(strings.NewReader(sentryYAML))
	require.NoError(t, err)
	_, err = ws.Load(def)
	require.NoError(t, err)

	h := host.New(ws, host.Config{Workers: 1})
	agent := binding.NewAgent("sentry-1")
	require.NoError(t, h.Bind(agent, "sentry"))

	srv := server.NewServer(h, server.Config{Token: token})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		_ = srv.Close()
		h.Close()
	})
	return h, agent, hs.URL
}

func TestNewValidatesConfig(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), c.config)

	_, err = New(Config{ServerAddr: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestQueriesAndEvents(t *testing.T) {
	h, agent, addr := newServer(t, "")
	c, err := New(Config{ServerAddr: addr})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	trees, err := c.Trees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sentry"}, trees)

	_, err = h.Tick("sentry-1")
	require.NoError(t, err)
	agents, err := c.Agents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, []string{"post", "stand"}, agents[0].Active)

	id, err := c.FireEvent(ctx, "sentry-1", "relieve", "corporal")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	info, err := c.Agent(ctx, "sentry-1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pending)

	st, err := h.Tick("sentry-1")
	require.NoError(t, err)
	assert.Equal(t, bt.StatusSuccess, st)
	relief, _ := agent.Blackboard().Get("relief")
	assert.Equal(t, "corporal", relief)

	_, err = c.Agent(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	_, err = c.FireEvent(ctx, "ghost", "relieve", nil)
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestToken(t *testing.T) {
	_, _, addr := newServer(t, "s3cret")
	ctx := context.Background()

	anon, err := New(Config{ServerAddr: addr})
	require.NoError(t, err)
	_, err = anon.Agents(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = anon.Frames(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	authed, err := New(Config{ServerAddr: addr, Token: "s3cret"})
	require.NoError(t, err)
	_, err = authed.Agents(ctx)
	assert.NoError(t, err)
}

func TestFrames(t *testing.T) {
	h, _, addr := newServer(t, "")
	c, err := New(Config{ServerAddr: addr})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frames, err := c.Frames(ctx)
	require.NoError(t, err)

	_, err = h.TickAll(ctx)
	require.NoError(t, err)

	select {
	case f := <-frames:
		assert.EqualValues(t, 1, f.Number)
		require.Len(t, f.Agents, 1)
		assert.Equal(t, "sentry-1", f.Agents[0].ID)
	case <-ctx.Done():
		t.Fatal("no frame received")
	}

	require.NoError(t, c.Close())
	for range frames {
	}
	_, err = c.Trees(ctx)
	assert.ErrorIs(t, err, ErrClientClosed)
}
