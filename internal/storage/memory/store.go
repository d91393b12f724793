// Package memory provides an in-memory image store for tests and local
// development.
package memory

import (
	"fmt"
	"image"
	"sync"

	"github.com/galleryharvest/galleryharvest/internal/hash/sha256"
)

// Store keeps saved images in a map keyed by destination key.
type Store struct {
	mu     sync.Mutex
	images map[string]image.Image
	hasher *sha256.Hasher
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		images: make(map[string]image.Image),
		hasher: sha256.New(),
	}
}

// KeyFor derives the destination key for a source URL.
func (s *Store) KeyFor(url string) string {
	return s.hasher.Sum(url) + ".jpg"
}

// Exists reports whether the key has been saved.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.images[key]
	return ok
}

// Save records the image and returns a mem:// pseudo-path.
func (s *Store) Save(img image.Image, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[key] = img
	return "mem://" + key, nil
}

// Path returns the mem:// pseudo-path a key resolves to.
func (s *Store) Path(key string) string {
	return "mem://" + key
}

// Count returns the number of stored images.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}
