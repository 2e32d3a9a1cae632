package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithCore(core).With(Tree("patrol"))

	l.Info("bound", Agent("a1"), Int("nodes", 4), Error(errors.New("x")))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "patrol", ctx["tree"])
	assert.Equal(t, "a1", ctx["agent"])
	assert.EqualValues(t, 4, ctx["nodes"])
	assert.Equal(t, "x", ctx["error"])
}

func TestLoggerLevel(t *testing.T) {
	l := NewNop()
	l.SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, l.GetLevel())

	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelInfo, WithOutput(&buf), WithoutSampling())
	l.Debug("hidden")
	l.With(Tree("patrol")).Warn("slow frame", Duration("took", 3*time.Millisecond))
	require.NoError(t, l.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "slow frame", entry["msg"])
	assert.Equal(t, "patrol", entry["tree"])

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	New(LevelInfo, WithOutput(&buf), WithConsole()).Info("bound", Agent("a1"))
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), `{"agent": "a1"}`)
}
