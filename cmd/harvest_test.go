package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galleryharvest/galleryharvest/internal/config"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{in: "1920x1080", w: 1920, h: 1080},
		{in: "800X600", w: 800, h: 600},
		{in: "1280×720", w: 1280, h: 720},
		{in: " 640 x 480 ", w: 640, h: 480},
		{in: "1920", wantErr: true},
		{in: "ax b", wantErr: true},
		{in: "-1x100", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := parseSize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.w, w)
			require.Equal(t, tt.h, h)
		})
	}
}

func TestReadLinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	body := []byte(`
# favorites
https://example.com/search?text=cats

https://example.com/search?text=dogs
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	links, err := readLinksFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com/search?text=cats",
		"https://example.com/search?text=dogs",
	}, links)
}

func TestReadLinksFileMissing(t *testing.T) {
	_, err := readLinksFile(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestApplyFlagsPreservesConfigFileLinks(t *testing.T) {
	base, err := config.Load("")
	require.NoError(t, err)
	base.Links = []string{"https://example.com/from-config"}

	none := func(string) bool { return false }

	got, err := applyFlags(base, harvestOptions{}, none)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/from-config"}, got.Links)

	// An explicit --links flag still wins over the config file.
	got, err = applyFlags(base,
		harvestOptions{links: []string{"https://example.com/from-flag"}},
		func(name string) bool { return name == "links" },
	)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/from-flag"}, got.Links)
}

func TestApplyFlagsOverrides(t *testing.T) {
	base, err := config.Load("")
	require.NoError(t, err)

	changed := map[string]bool{"count": true}
	got, err := applyFlags(base, harvestOptions{
		size:    "800x600",
		count:   7,
		dir:     "/tmp/out",
		prevDir: "/tmp/prev",
	}, func(name string) bool { return changed[name] })
	require.NoError(t, err)

	require.Equal(t, 800, got.Harvest.MinWidth)
	require.Equal(t, 600, got.Harvest.MinHeight)
	require.Equal(t, 7, got.Harvest.Count)
	require.Equal(t, "/tmp/out", got.Harvest.OutputDir)
	require.Equal(t, "/tmp/prev", got.Harvest.PrevDir)

	_, err = applyFlags(base, harvestOptions{size: "bogus"}, func(string) bool { return false })
	require.Error(t, err)
}

func TestHarvestCmdRequiresLinks(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"harvest", "--dir", t.TempDir()})
	err := cmd.Execute()
	require.ErrorContains(t, err, "start link")
}
