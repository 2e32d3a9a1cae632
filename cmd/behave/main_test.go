package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--domain=", "testdata/patrol.yaml", "testdata/kitchen.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   testdata/patrol.yaml (patrol)")
	assert.Contains(t, out, "ok   testdata/kitchen.yaml (kitchen)")

	out, err = execute(t, "validate", "--domain=", "testdata/patrol.yaml", "testdata/broken.yaml")
	assert.ErrorIs(t, err, errInvalidTrees)
	assert.Contains(t, out, "FAIL testdata/broken.yaml")

	_, err = execute(t, "validate", "--domain=", "testdata/missing.yaml")
	assert.ErrorIs(t, err, errInvalidTrees)
}

func TestRunPatrol(t *testing.T) {
	out, err := execute(t, "run", "--domain=", "--seed", "7", "--agents", "2", "--frames", "3", "testdata/patrol.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 3")
	assert.Contains(t, out, "agent-000")
	assert.Contains(t, out, "agent-001")
	assert.Contains(t, out, "success")
}

func TestRunPlanner(t *testing.T) {
	out, err := execute(t, "run", "--domain", "testdata/kitchen_domain.yaml", "--agents", "1", "--frames", "20", "testdata/kitchen.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "agent-000")
	assert.Contains(t, out, "success")
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := execute(t, "run", "--domain=", "testdata/broken.yaml")
	assert.Error(t, err)

	_, err = execute(t, "run", "--domain", "testdata/missing.yaml", "testdata/kitchen.yaml")
	assert.ErrorContains(t, err, "load domain")
}
