package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitEvent(t *testing.T) {
	f := newFixture(t)
	tt := f.bind(node("sequence",
		named("wait", "wait_event", map[string]any{"event": "door_open"}),
		act("enter"),
	))

	assert.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, StatusRunning, f.tick(tt))

	handled, err := tt.FireEvent("bell", nil)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, StatusRunning, f.tick(tt))

	handled, err = tt.FireEvent("door_open", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, StatusSuccess, f.tick(tt))
	assert.Equal(t, []string{"enter"}, f.calls)
}

func TestEventParamStoresPayload(t *testing.T) {
	f := newFixture(t)
	f.result("guard", StatusRunning)
	root := node("sequence", act("guard"))
	root.Events = []EventSpec{{Name: "noise", Param: "noise_at"}}
	tt := f.bind(root)

	require.Equal(t, StatusRunning, f.tick(tt))
	handled, err := tt.FireEvent("noise", []float64{1, 2})
	require.NoError(t, err)
	assert.True(t, handled)

	v, ok := f.agent.Blackboard().Get("noise_at")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, v)
}

func TestEventsOnlyReachRunningTasks(t *testing.T) {
	f := newFixture(t)
	idle := act("idle")
	idle.Events = []EventSpec{{Name: "noise", Param: "heard"}}
	tt := f.bind(node("selector", idle))

	require.Equal(t, StatusSuccess, f.tick(tt))
	handled, err := tt.FireEvent("noise", 1)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.False(t, f.agent.Blackboard().Has("heard"))
}

func TestEventRestartAbortsRunningSubtree(t *testing.T) {
	f := newFixture(t)
	f.result("long", StatusRunning)
	long := act("long")
	long.Events = []EventSpec{{Name: "alarm", Restart: true}}
	long.Post = []AttachmentSpec{{Left: "interrupted", Operator: "assign", Right2: true, Phase: "failure"}}
	tt := f.bind(node("sequence", act("first"), long))

	require.Equal(t, StatusRunning, f.tick(tt))
	_, err := tt.FireEvent("alarm", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, tt.Status())
	assert.Empty(t, tt.ActivePath())
	interrupted, _ := f.agent.Blackboard().GetBool("interrupted")
	assert.True(t, interrupted)

	f.reset()
	require.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, []string{"first", "long"}, f.calls)
}
