// Package memory provides the bounded in-memory item queue shared between
// crawl and download workers.
package memory

import (
	"context"
	"fmt"

	"github.com/galleryharvest/galleryharvest/internal/harvest"
)

// Queue is a bounded multi-producer/multi-consumer buffer. Put blocks when
// the queue is at capacity; this backpressure couples crawl speed to
// download throughput.
type Queue struct {
	ch chan harvest.Item
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan harvest.Item, capacity),
	}
}

// Put pushes an item, blocking while the queue is full, or returns if the
// context ends. An accepted item is never dropped.
func (q *Queue) Put(ctx context.Context, item harvest.Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue put canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Get pops the next item, respecting context cancellation.
func (q *Queue) Get(ctx context.Context) (harvest.Item, error) {
	select {
	case <-ctx.Done():
		return harvest.Item{}, fmt.Errorf("queue get canceled: %w", ctx.Err())
	case item := <-q.ch:
		return item, nil
	}
}

// TryGet pops the next item without blocking.
func (q *Queue) TryGet() (harvest.Item, bool) {
	select {
	case item := <-q.ch:
		return item, true
	default:
		return harvest.Item{}, false
	}
}

// Len is a best-effort depth estimate. Consumers use it to decide whether a
// full batch is ready and must tolerate races against concurrent readers.
func (q *Queue) Len() int {
	return len(q.ch)
}
