package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 0, cfg.Harvest.Count)
	require.Equal(t, "gallery-images", cfg.Harvest.OutputDir)
	require.Equal(t, 2, cfg.Loader.ConsumersPerSource)
	require.Equal(t, 1, cfg.Loader.ChunkSize)
	require.Equal(t, 4, cfg.Download.Workers)
	require.Equal(t, 15, cfg.Download.TimeoutSeconds)
	require.Equal(t, 92, cfg.Storage.JPEGQuality)
	require.False(t, cfg.Metrics.Enabled)
	require.Contains(t, cfg.Crawler.UserAgent, "Firefox")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
harvest:
  count: 25
  min_width: 800
  min_height: 600
  output_dir: /tmp/images
loader:
  consumers_per_source: 3
download:
  workers: 8
metrics:
  enabled: true
  addr: ":9191"
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Harvest.Count)
	require.Equal(t, 800, cfg.Harvest.MinWidth)
	require.Equal(t, 600, cfg.Harvest.MinHeight)
	require.Equal(t, "/tmp/images", cfg.Harvest.OutputDir)
	require.Equal(t, 3, cfg.Loader.ConsumersPerSource)
	require.Equal(t, 8, cfg.Download.Workers)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, ":9191", cfg.Metrics.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Links = []string{"https://example.com/search?text=cats"}
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("no links", func(t *testing.T) {
		cfg := base()
		cfg.Links = nil
		require.ErrorContains(t, cfg.Validate(), "start link")
	})

	t.Run("empty output dir", func(t *testing.T) {
		cfg := base()
		cfg.Harvest.OutputDir = "  "
		require.ErrorContains(t, cfg.Validate(), "output_dir")
	})

	t.Run("negative count", func(t *testing.T) {
		cfg := base()
		cfg.Harvest.Count = -1
		require.ErrorContains(t, cfg.Validate(), "count")
	})

	t.Run("zero consumers", func(t *testing.T) {
		cfg := base()
		cfg.Loader.ConsumersPerSource = 0
		require.ErrorContains(t, cfg.Validate(), "consumers_per_source")
	})

	t.Run("inverted jitter bounds", func(t *testing.T) {
		cfg := base()
		cfg.Download.MinWaitMs = 500
		cfg.Download.MaxWaitMs = 100
		require.ErrorContains(t, cfg.Validate(), "max_wait_ms")
	})

	t.Run("metrics enabled without addr", func(t *testing.T) {
		cfg := base()
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = ""
		require.ErrorContains(t, cfg.Validate(), "metrics.addr")
	})
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "20s", cfg.Crawler.OpTimeout().String())
	require.Equal(t, "2s", cfg.Crawler.ErrorPause().String())
	require.Equal(t, "100ms", cfg.Loader.PollInterval().String())
	require.Equal(t, "15s", cfg.Download.Timeout().String())
	require.Equal(t, "100ms", cfg.Download.MinWait().String())
	require.Equal(t, "500ms", cfg.Download.MaxWait().String())
}
