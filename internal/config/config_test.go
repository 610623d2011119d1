package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 64*1024, cfg.GC.MinThreshold)
	require.Equal(t, uint8(2), cfg.GC.PromotionAge)
	require.Equal(t, 0.5, cfg.GC.MaxPromotionRate)
	require.True(t, cfg.EnableTypeChecker)
	require.False(t, cfg.StrictThreading)
}

func TestLoadOverridesOnlyFieldsPresentInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erkao.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strictThreading: true
gc:
  minThreshold: 4096
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.StrictThreading)
	require.Equal(t, 4096, cfg.GC.MinThreshold)
	// fields absent from the file keep Default()'s values
	require.Equal(t, uint8(2), cfg.GC.PromotionAge)
	require.True(t, cfg.EnableTypeChecker)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestGCConfigProjection(t *testing.T) {
	cfg := Default()
	gcCfg := cfg.GCConfig()
	require.Equal(t, cfg.GC.MinThreshold, gcCfg.MinThreshold)
	require.Equal(t, cfg.GC.PromotionAge, gcCfg.PromotionAge)
	require.Equal(t, cfg.GC.MaxPromotionRate, gcCfg.MaxPromotionRate)
}
