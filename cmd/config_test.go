package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/ipc-sim/sim"
)

func writeDefaults(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsConfig_PartialSections(t *testing.T) {
	// GIVEN a file setting only the queue capacity and a pipe message list
	path := writeDefaults(t, `
version: "1"
queue:
  capacity: 2
pipe:
  messages: [a, b]
`)

	// WHEN it is loaded
	cfg, err := loadDefaultsConfig(path)
	require.NoError(t, err)

	// THEN only the given keys are set
	require.NotNil(t, cfg.Queue.Capacity)
	assert.Equal(t, 2, *cfg.Queue.Capacity)
	assert.Nil(t, cfg.Queue.PutTimeout)
	assert.Equal(t, []string{"a", "b"}, cfg.Pipe.Messages)
	assert.Nil(t, cfg.Pipe.SenderDelay)
}

func TestLoadDefaultsConfig_UnknownKeyIsAnError(t *testing.T) {
	// a typo must not be silently ignored
	path := writeDefaults(t, "queue:\n  capacty: 2\n")
	_, err := loadDefaultsConfig(path)
	assert.Error(t, err)
}

func TestLoadDefaultsConfig_EmptyFile(t *testing.T) {
	cfg, err := loadDefaultsConfig(writeDefaults(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadDefaultsConfig_MissingFile(t *testing.T) {
	_, err := loadDefaultsConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestShippedDefaults_MatchBuiltInScenarios(t *testing.T) {
	path := "../defaults.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("defaults.yaml not found, skipping")
	}

	// GIVEN the shipped defaults file
	cfg, err := loadDefaultsConfig(path)
	require.NoError(t, err)

	// WHEN it is applied on top of each built-in scenario
	// THEN nothing changes
	cmd := newRunCommand(t)
	for _, mode := range sim.AllModes {
		want, err := sim.DefaultScenario(mode)
		require.NoError(t, err)
		got, err := buildScenario(cmd, mode, cfg)
		require.NoError(t, err)
		assert.Equal(t, want, got, mode)
	}
}

func TestLoadEnv_InvalidValue(t *testing.T) {
	t.Setenv("IPCSIM_PAUSE", "soon")
	_, err := loadEnv()
	assert.Error(t, err)
}

func TestLoadEnv_UnsetLeavesZeroValues(t *testing.T) {
	env, err := loadEnv()
	require.NoError(t, err)
	assert.Nil(t, env.Pause)
	assert.Zero(t, env.TimeUnit)
}
