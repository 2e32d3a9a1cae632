package bt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behave/internal/core/binding"
)

func TestActionResultMapping(t *testing.T) {
	cases := []struct {
		name   string
		out    any
		result string
		want   Status
	}{
		{"status", StatusRunning, "", StatusRunning},
		{"bool true", true, "", StatusSuccess},
		{"bool false", false, "", StatusFailure},
		{"status name", "failure", "", StatusFailure},
		{"other default", 42, "", StatusSuccess},
		{"other configured", 42, "failure", StatusFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.set("result.x", tc.out)
			spec := act("x")
			if tc.result != "" {
				spec.Props["result"] = tc.result
			}
			tt := f.bind(spec)
			assert.Equal(t, tc.want, f.tick(tt))
		})
	}
}

func TestActionResolvesMethodAtLoad(t *testing.T) {
	f := newFixture(t)
	_, err := f.ws.Load(&Definition{ID: "x", Root: named("a", "action", map[string]any{"method": "nope"})})
	assert.ErrorIs(t, err, binding.ErrUnresolved)

	_, err = f.ws.Load(&Definition{ID: "y", Root: named("a", "action", map[string]any{"method": "run", "typo": 1})})
	assert.ErrorIs(t, err, ErrInvalidConfig, "unknown properties are rejected")
}

func TestActionErrorPoisonsTree(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.r.RegisterMethod("explode", func(binding.Agent, ...any) (any, error) { return nil, boom })
	tt := f.bind(node("sequence", named("e", "action", map[string]any{"method": "explode"})))

	st, err := tt.Tick()
	assert.Equal(t, StatusInvalid, st)
	require.ErrorIs(t, err, boom)
	var te *TickError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "e", te.Node)
	assert.Equal(t, "agent-1", te.Agent)

	_, err = tt.Tick()
	assert.ErrorIs(t, err, boom)
}

func TestWait(t *testing.T) {
	f := newFixture(t)
	tt := f.bind(named("w", "wait", map[string]any{"frames": 2}))

	assert.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, StatusRunning, f.tick(tt))
	assert.Equal(t, StatusSuccess, f.tick(tt))
	assert.Equal(t, StatusRunning, f.tick(tt), "a new activation waits again")
}

func TestNoop(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StatusSuccess, f.tick(f.bind(node("noop"))))
}

func TestTaskPlainDelegatesToChild(t *testing.T) {
	f := newFixture(t)
	f.result("child", StatusFailure)
	tt := f.bind(node("task", act("child")))
	assert.Equal(t, StatusFailure, f.tick(tt))

	_, err := f.ws.Load(&Definition{ID: "two", Root: node("task", act("a"), act("b"))})
	assert.ErrorIs(t, err, ErrChildCount)
}
