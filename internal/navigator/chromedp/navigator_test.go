package chromedp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDimensions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label  string
		width  int
		height int
		ok     bool
	}{
		{"1920×1080", 1920, 1080, true},
		{" 800 × 600 ", 800, 600, true},
		{"640x480", 640, 480, true},
		{"Download", 0, 0, false},
		{"", 0, 0, false},
		{"×1080", 0, 0, false},
		{"1920×", 0, 0, false},
		{"0×600", 0, 0, false},
		{"abc×def", 0, 0, false},
	}

	for _, tc := range cases {
		w, h, ok := ParseDimensions(tc.label)
		require.Equal(t, tc.ok, ok, "label %q", tc.label)
		require.Equal(t, tc.width, w, "label %q", tc.label)
		require.Equal(t, tc.height, h, "label %q", tc.label)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.applyDefaults()
	require.Equal(t, "img.MMImage-Preview", cfg.PreviewSelector)
	require.NotEmpty(t, cfg.SizeSelector)
	require.NotEmpty(t, cfg.NextSelector)
	require.Positive(t, cfg.OpTimeout)
}
