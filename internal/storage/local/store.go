// Package local implements the filesystem image store.
package local

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/galleryharvest/galleryharvest/internal/harvest"
	"github.com/galleryharvest/galleryharvest/internal/skipset"
)

const defaultJPEGQuality = 92

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory where images will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// JPEGQuality is the encoder quality, 1-100.
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// Store persists normalized images as JPEG files under a base directory.
// Keys are content-addressed from the source URL, so a re-run against the
// same directory dedups for free.
type Store struct {
	baseDir string
	quality int
	hasher  harvest.Hasher
	skip    *skipset.Set
}

// New creates a filesystem-backed store. The skip set may be nil.
func New(cfg Config, hasher harvest.Hasher, skip *skipset.Set) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path is not a directory")
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}

	// Probe for write permissions up front rather than failing mid-run.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{
		baseDir: cfg.BaseDir,
		quality: quality,
		hasher:  hasher,
		skip:    skip,
	}, nil
}

// KeyFor derives the destination key for a source URL.
func (s *Store) KeyFor(url string) string {
	return s.hasher.Sum(url) + ".jpg"
}

// Exists reports whether the key is already materialized, either on disk or
// in the startup skip set.
func (s *Store) Exists(key string) bool {
	if s.skip.Contains(key) {
		return true
	}
	_, err := os.Stat(filepath.Join(s.baseDir, key))
	return err == nil
}

// Save encodes the image as JPEG at the key and returns the final path. The
// write goes through a temp file and rename so readers never observe a
// partial image.
func (s *Store) Save(img image.Image, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}

	fullPath := filepath.Join(s.baseDir, key)
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	tmp, err := os.CreateTemp(s.baseDir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: s.quality}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return fullPath, nil
}

// Path returns the absolute location a key resolves to.
func (s *Store) Path(key string) string {
	return filepath.Join(s.baseDir, key)
}
