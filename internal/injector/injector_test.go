package injector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
	"github.com/zeusync/behave/internal/core/bt"
	"github.com/zeusync/behave/internal/planner/pabt"
)

const planYAML = `
id: chores
root:
  kind: task
  props:
    htn: true
    goal:
      - {prop: swept, op: eq, value: true}
`

func TestInitializeApp(t *testing.T) {
	app, cleanup, err := InitializeApp(Config{
		LogLevel: "error",
		Seed:     3,
		Actions:  []pabt.Action{{Name: "sweep", Effects: map[string]any{"swept": true}}},
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.Same(t, app.Workspace, app.Host.Workspace())
	assert.Same(t, app.Resolver, app.Workspace.Resolver())
	assert.Equal(t, []string{"sweep"}, app.Planners.Actions())

	def, err := bt.LoadYAML(strings.NewReader(planYAML))
	require.NoError(t, err)
	_, err = app.Workspace.Load(def)
	require.NoError(t, err)

	agent := binding.NewAgent("janitor")
	require.NoError(t, app.Host.Bind(agent, "chores"))
	for range 10 {
		st, err := app.Host.Tick("janitor")
		require.NoError(t, err)
		if st == bt.StatusSuccess {
			break
		}
	}
	swept, _ := agent.Blackboard().GetBool("swept")
	assert.True(t, swept)
}

func TestInitializeAppRejectsBadConfig(t *testing.T) {
	_, _, err := InitializeApp(Config{LogLevel: "loud"})
	assert.Error(t, err)

	_, _, err = InitializeApp(Config{Actions: []pabt.Action{{Name: "a"}, {Name: "a"}}})
	assert.ErrorIs(t, err, pabt.ErrDuplicateAction)
}
