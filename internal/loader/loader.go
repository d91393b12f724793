// Package loader implements the consumer side of the harvest pipeline:
// workers that batch items off the queue, run them through the download
// pipeline, and decide global termination.
package loader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/coord"
	"github.com/galleryharvest/galleryharvest/internal/downloader"
	"github.com/galleryharvest/galleryharvest/internal/harvest"
	"github.com/galleryharvest/galleryharvest/internal/metrics"
	"github.com/galleryharvest/galleryharvest/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	// ChunkSize is how many items are drained as one batch. Default 1;
	// raise it to amortize dispatch overhead at the cost of latency.
	ChunkSize int
	// PollInterval is how long the worker parks when the queue holds
	// fewer than ChunkSize items. The queue has no batch-ready signal, so
	// this poll adds up to one interval of latency per idle wakeup.
	PollInterval time.Duration
	// MinWidth and MinHeight drop items whose reported dimensions fall
	// below the minimum. Items with unknown dimensions pass through.
	MinWidth  int
	MinHeight int
}

// Worker drains item batches and resolves each item to exactly one outcome:
// downloaded, skipped, or failed.
type Worker struct {
	queue    harvest.Queue
	dl       *downloader.Downloader
	stop     *coord.Flag
	reporter *progress.Reporter
	cfg      Config
	logger   *zap.Logger
}

// New constructs a download worker.
func New(
	queue harvest.Queue,
	dl *downloader.Downloader,
	stop *coord.Flag,
	reporter *progress.Reporter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		dl:       dl,
		stop:     stop,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run loops until termination is signaled and the queue is drained. Items
// already admitted to the queue are never abandoned: on observing the
// signal the worker drains whatever is buffered exactly once more, then
// exits without pulling anything further.
func (w *Worker) Run(ctx context.Context) {
	for {
		if w.stop.IsSet() {
			w.finalDrain(ctx)
			return
		}
		if ctx.Err() != nil {
			return
		}

		depth := w.queue.Len()
		metrics.SetQueueDepth(depth)
		if depth >= w.cfg.ChunkSize {
			w.processBatch(ctx, w.collect(w.cfg.ChunkSize))
			continue
		}
		w.park(ctx)
	}
}

// collect drains up to n items without blocking. Racing consumers may leave
// fewer than n; the shortfall batch is processed as-is.
func (w *Worker) collect(n int) []harvest.Item {
	batch := make([]harvest.Item, 0, n)
	for len(batch) < n {
		item, ok := w.queue.TryGet()
		if !ok {
			break
		}
		batch = append(batch, item)
	}
	return batch
}

func (w *Worker) finalDrain(ctx context.Context) {
	batch := make([]harvest.Item, 0, w.queue.Len())
	for {
		item, ok := w.queue.TryGet()
		if !ok {
			break
		}
		batch = append(batch, item)
	}
	if len(batch) == 0 {
		return
	}
	w.logger.Info("draining buffered items after termination", zap.Int("count", len(batch)))
	w.processBatch(ctx, batch)
}

// processBatch filters undersized items, dispatches the rest to the
// download pipeline, and updates the shared counters. Per-item failures
// never abort the batch.
func (w *Worker) processBatch(ctx context.Context, batch []harvest.Item) {
	if len(batch) == 0 {
		return
	}
	metrics.WorkerActive(true)
	defer metrics.WorkerActive(false)

	reqs := make([]downloader.Request, 0, len(batch))
	for _, item := range batch {
		if !item.AtLeast(w.cfg.MinWidth, w.cfg.MinHeight) {
			w.reporter.ItemSkipped()
			metrics.ImageSkipped("min_size")
			w.logger.Debug("item below minimum size",
				zap.String("url", item.Link),
				zap.Int("width", item.Width),
				zap.Int("height", item.Height),
			)
			continue
		}
		reqs = append(reqs, downloader.Request{URL: item.Link})
	}
	if len(reqs) == 0 {
		return
	}

	summary := w.dl.Download(ctx, reqs, false)
	loaded := len(summary.Downloaded)
	if len(summary.Failed) > 0 {
		w.reporter.DownloadsFailed(int64(len(summary.Failed)))
		for _, out := range summary.Failed {
			w.logger.Debug("image failed", zap.String("url", out.URL), zap.Error(out.Err))
		}
		w.logger.Warn("failed to load images",
			zap.Int("requested", summary.Requested),
			zap.Int("loaded", loaded),
		)
	}
	if loaded == 0 {
		return
	}

	total := w.reporter.ImagesDownloaded(int64(loaded))
	target := w.reporter.Target()
	if target > 0 && total >= target && !w.stop.IsSet() {
		// Racing workers may all pass this check; slight overshoot of the
		// target is accepted rather than paying for a transaction.
		w.logger.Info("download target reached",
			zap.Int64("downloaded", total),
			zap.Int64("target", target),
		)
		w.stop.Set()
	}
}

// park waits out one poll interval, waking early on termination or context
// cancellation.
func (w *Worker) park(ctx context.Context) {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stop.Done():
	case <-timer.C:
	}
}
