package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"axon/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, 0.7, cfg.DefaultConfidence)
	require.Equal(t, 3, cfg.RetryMaxAttempts())
	require.False(t, cfg.FullTrace())
}

func TestConfigSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "axon.yaml")

	cfg := config.Default()
	cfg.Effort.Precise = 0.8
	cfg.Trace.Verbosity = "full"
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.8, loaded.Effort.Precise)
	require.True(t, loaded.FullTrace())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.Default().DefaultConfidence, cfg.DefaultConfidence)
}

func TestEffortFloorFallsBackForUnknownWord(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, cfg.Effort.Quick, cfg.EffortFloor("quick"))
	require.Equal(t, cfg.DefaultConfidence, cfg.EffortFloor("unknown"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AXON_VERBOSE", "1")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Logging.Verbose)
}
