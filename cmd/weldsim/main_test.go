package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.toml")
	require.NoError(t, os.WriteFile(path, []byte("[world]\nname = \"harbor\"\nsave_dir = \"a\"\n"), 0o644))

	cfg, err := loadConfig(options{config: path, saveDir: "b", watch: true})
	require.NoError(t, err)
	assert.Equal(t, "harbor", cfg.World.Name)
	assert.Equal(t, "b", cfg.World.SaveDir)
	assert.True(t, cfg.Scenario.Watch)

	cfg, err = loadConfig(options{world: "reef"})
	require.NoError(t, err)
	assert.Equal(t, "reef", cfg.World.Name)
	assert.False(t, cfg.Scenario.Watch)
}

func TestRunScenarioOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(options{scenario: "shared", saveDir: dir, world: "once"}))
	_, err := os.Stat(filepath.Join(dir, "once.yaml"))
	assert.NoError(t, err, "world saved on exit")

	assert.Error(t, run(options{scenario: "missing", saveDir: dir, world: "once"}))
}
