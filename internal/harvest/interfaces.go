package harvest

import (
	"context"
	"image"
)

// Navigator walks a gallery one preview at a time. Implementations own a
// browser session; Close releases it.
type Navigator interface {
	Open(ctx context.Context, startURL string) error
	CurrentItem(ctx context.Context) (Item, error)
	Advance(ctx context.Context) (bool, error)
	Close() error
}

// Storage persists normalized images and answers dedup queries. Path must
// resolve a key to the same location Save returns for it, so dedup hits and
// fresh writes report identically.
type Storage interface {
	KeyFor(url string) string
	Exists(key string) bool
	Save(img image.Image, key string) (string, error)
	Path(key string) string
}

// Queue provides blocking put/get semantics for discovered items. Len is a
// best-effort depth estimate; callers must tolerate races against it.
type Queue interface {
	Put(ctx context.Context, item Item) error
	Get(ctx context.Context) (Item, error)
	TryGet() (Item, bool)
	Len() int
}

// Hasher computes digests used to derive storage keys.
type Hasher interface {
	Sum(data string) string
}
