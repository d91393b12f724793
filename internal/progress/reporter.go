// Package progress tracks run-wide counters and reports them incrementally.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/coord"
)

// Reporter holds the shared run counters. Downloaded is the cross-worker
// counter download workers race on when deciding termination; Target is
// immutable after construction (0 means unbounded, crawl-exhaustion only).
type Reporter struct {
	target int64

	discovered coord.Counter
	downloaded coord.Counter
	skipped    coord.Counter
	failed     coord.Counter

	logger   *zap.Logger
	interval time.Duration
}

// NewReporter constructs a Reporter logging through the supplied logger.
func NewReporter(target int64, interval time.Duration, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Reporter{
		target:   target,
		logger:   logger,
		interval: interval,
	}
}

// Target returns the requested image count, 0 when unbounded.
func (r *Reporter) Target() int64 {
	return r.target
}

// ItemDiscovered records one crawled item.
func (r *Reporter) ItemDiscovered() {
	r.discovered.Add(1)
}

// ImagesDownloaded adds freshly resolved successes and returns the new
// cumulative count.
func (r *Reporter) ImagesDownloaded(n int64) int64 {
	return r.downloaded.Add(n)
}

// Downloaded returns the cumulative success count.
func (r *Reporter) Downloaded() int64 {
	return r.downloaded.Load()
}

// ItemSkipped records one item dropped before download.
func (r *Reporter) ItemSkipped() {
	r.skipped.Add(1)
}

// DownloadsFailed adds per-item failures from a batch.
func (r *Reporter) DownloadsFailed(n int64) {
	r.failed.Add(n)
}

// Run logs a progress line every interval until the context ends.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logger.Info("harvest progress",
				zap.Int64("discovered", r.discovered.Load()),
				zap.Int64("downloaded", r.downloaded.Load()),
				zap.Int64("skipped", r.skipped.Load()),
				zap.Int64("failed", r.failed.Load()),
				zap.Int64("target", r.target),
			)
		}
	}
}

// Summary logs the final run totals.
func (r *Reporter) Summary() {
	fields := []zap.Field{
		zap.Int64("discovered", r.discovered.Load()),
		zap.Int64("downloaded", r.downloaded.Load()),
		zap.Int64("skipped", r.skipped.Load()),
		zap.Int64("failed", r.failed.Load()),
	}
	if r.target > 0 {
		fields = append(fields, zap.Int64("requested", r.target))
	}
	r.logger.Info("harvest finished", fields...)
}
