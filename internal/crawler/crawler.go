// Package crawler implements the producer side of the harvest pipeline: one
// worker per gallery source, walking previews and feeding the shared queue.
package crawler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/coord"
	"github.com/galleryharvest/galleryharvest/internal/harvest"
	"github.com/galleryharvest/galleryharvest/internal/metrics"
	"github.com/galleryharvest/galleryharvest/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	// StartURL is the gallery preview this worker opens first.
	StartURL string
	// ErrorPause is how long the worker backs off after a non-terminal
	// navigation error before retrying.
	ErrorPause time.Duration
}

// Worker drives one navigator, pushing discovered items onto the queue until
// the gallery is exhausted or termination is signaled.
type Worker struct {
	id       int
	nav      harvest.Navigator
	queue    harvest.Queue
	stop     *coord.Flag
	reporter *progress.Reporter
	cfg      Config
	logger   *zap.Logger
}

// New constructs a crawl worker.
func New(
	id int,
	nav harvest.Navigator,
	queue harvest.Queue,
	stop *coord.Flag,
	reporter *progress.Reporter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		nav:      nav,
		queue:    queue,
		stop:     stop,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks until the gallery is exhausted, termination is signaled, or the
// context ends. The navigator is always closed on the way out.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if err := w.nav.Close(); err != nil {
			w.logger.Warn("navigator close failed", zap.Error(err))
		}
	}()

	// Termination must also unblock a Put stalled on a full queue, so the
	// flag is forwarded into the context the queue observes.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.nav.Open(ctx, w.cfg.StartURL); err != nil {
		w.logger.Error("open gallery failed", zap.String("url", w.cfg.StartURL), zap.Error(err))
		return
	}
	w.logger.Info("crawl started", zap.String("url", w.cfg.StartURL))

	for {
		if w.stop.IsSet() {
			w.logger.Info("termination observed, crawl stopping")
			return
		}
		if ctx.Err() != nil {
			return
		}

		item, err := w.nav.CurrentItem(ctx)
		if err != nil {
			w.handleNavError(ctx, "read current item", err)
			if errors.Is(err, harvest.ErrExhausted) {
				return
			}
			continue
		}

		// Put blocks under backpressure: crawl speed is deliberately
		// coupled to download throughput.
		if err := w.queue.Put(ctx, item); err != nil {
			return
		}
		w.reporter.ItemDiscovered()
		metrics.ItemDiscovered(strconv.Itoa(w.id))

		ok, err := w.nav.Advance(ctx)
		if err != nil {
			w.handleNavError(ctx, "advance", err)
			if errors.Is(err, harvest.ErrExhausted) {
				return
			}
			continue
		}
		if !ok {
			w.logger.Info("gallery exhausted")
			return
		}
	}
}

// handleNavError logs a navigation failure and pauses briefly before the
// caller retries. Exhaustion is an expected terminal condition and is only
// logged at info level.
func (w *Worker) handleNavError(ctx context.Context, op string, err error) {
	if errors.Is(err, harvest.ErrExhausted) {
		w.logger.Info("gallery exhausted", zap.String("op", op))
		return
	}
	w.logger.Warn("navigation error, backing off",
		zap.String("op", op),
		zap.Duration("pause", w.cfg.ErrorPause),
		zap.Error(err),
	)
	timer := time.NewTimer(w.cfg.ErrorPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.stop.Done():
	case <-timer.C:
	}
}
