// Package coord holds the cross-worker coordination primitives: a write-once
// termination flag and a best-effort shared counter. Together with the
// bounded queue they are the only mutable state shared between crawl and
// download workers.
package coord

import "sync/atomic"

// Flag is a shared boolean that transitions exactly once from unset to set.
// Set is idempotent; once observed set it is never observed unset again.
type Flag struct {
	set  atomic.Bool
	done chan struct{}
}

// NewFlag returns an unset Flag.
func NewFlag() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set raises the flag. Only the first call closes the Done channel.
func (f *Flag) Set() {
	if f.set.CompareAndSwap(false, true) {
		close(f.done)
	}
}

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel closed when the flag is raised, so blocked workers
// can unpark without polling.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// Counter is a monotonically non-decreasing shared counter. Increments are
// best-effort with respect to a target threshold: concurrent adders may
// overshoot, which callers accept rather than paying for a transaction.
type Counter struct {
	n atomic.Int64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return c.n.Add(delta)
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

// CompareAndSwap atomically replaces old with next when the value matches.
func (c *Counter) CompareAndSwap(old, next int64) bool {
	return c.n.CompareAndSwap(old, next)
}
