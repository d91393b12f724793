// Package harvest defines core types shared across subsystems.
package harvest

import "image"

// Item is a single gallery image discovered by a crawl worker. Width and
// Height are zero when the gallery does not expose them.
type Item struct {
	Link   string
	Width  int
	Height int
}

// HasSize reports whether both dimensions are known.
func (i Item) HasSize() bool {
	return i.Width > 0 && i.Height > 0
}

// AtLeast reports whether the item's known dimensions meet the minimum.
// Items with unknown dimensions pass; they are verified after decoding.
func (i Item) AtLeast(minWidth, minHeight int) bool {
	if !i.HasSize() {
		return true
	}
	return i.Width >= minWidth && i.Height >= minHeight
}

// Outcome records the resolution of one download attempt.
type Outcome struct {
	URL     string
	Path    string
	Success bool
	Cached  bool
	Err     error
}

// BatchSummary aggregates outcomes of one processed batch.
type BatchSummary struct {
	Requested  int
	Downloaded []string
	Failed     []Outcome
}

// Decoded pairs a normalized image with its source URL, ready for storage.
type Decoded struct {
	URL   string
	Image image.Image
}
