// Package skipset builds the immutable set of already-materialized image
// identifiers consulted for dedup.
package skipset

import (
	"fmt"
	"os"
	"strings"
)

// Set holds filename stems of images that are already present on disk. It is
// computed once at startup and never mutated during a run.
type Set struct {
	stems map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{stems: make(map[string]struct{})}
}

// FromDirs seeds a set from the filename stems found in each directory.
// Missing directories are skipped; the output directory may not exist yet on
// a first run.
func FromDirs(dirs ...string) (*Set, error) {
	s := New()
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read skip dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			s.add(entry.Name())
		}
	}
	return s, nil
}

func (s *Set) add(filename string) {
	stem := filename
	if i := strings.IndexByte(filename, '.'); i >= 0 {
		stem = filename[:i]
	}
	if stem == "" {
		return
	}
	s.stems[stem] = struct{}{}
}

// Contains reports whether the key's stem was seen at startup.
func (s *Set) Contains(key string) bool {
	if s == nil {
		return false
	}
	stem := key
	if i := strings.IndexByte(key, '.'); i >= 0 {
		stem = key[:i]
	}
	_, ok := s.stems[stem]
	return ok
}

// Size returns the number of distinct stems.
func (s *Set) Size() int {
	if s == nil {
		return 0
	}
	return len(s.stems)
}
