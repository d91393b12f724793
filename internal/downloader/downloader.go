// Package downloader implements the per-item fetch/convert/store pipeline
// executed under a fixed-size worker pool.
package downloader

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/harvest"
	"github.com/galleryharvest/galleryharvest/internal/imaging"
	"github.com/galleryharvest/galleryharvest/internal/metrics"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:91.0) Gecko/20100101 Firefox/91.0"

// Config controls Downloader behavior.
type Config struct {
	// Workers is the pool size for concurrent fetches within one batch.
	Workers int
	// Timeout bounds each HTTP fetch.
	Timeout time.Duration
	// MinWait and MaxWait bound the post-success jitter sleep that
	// rate-limits the remote host. The sleep throttles only the worker
	// goroutine that completed the download, never the whole pool.
	MinWait time.Duration
	MaxWait time.Duration
	// UserAgent overrides the request User-Agent header.
	UserAgent string
	// Referer is attached to every fetch when non-empty.
	Referer string
}

// Request names one image to materialize. Key may be empty, in which case it
// is derived from the URL.
type Request struct {
	URL string
	Key string
}

// Downloader fetches images, normalizes them, and hands them to storage.
type Downloader struct {
	storage harvest.Storage
	client  *http.Client
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Downloader. A nil client gets a default with the
// configured timeout.
func New(storage harvest.Storage, client *http.Client, cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxWait < cfg.MinWait {
		cfg.MaxWait = cfg.MinWait
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		storage: storage,
		client:  client,
		cfg:     cfg,
		logger:  logger,
	}
}

// Download materializes every request, fanning out over the worker pool and
// collecting outcomes as they complete. A slow or failing item never blocks
// collection of the others; submission order is not preserved. Failures are
// returned, not raised, and there is no automatic retry.
func (d *Downloader) Download(ctx context.Context, reqs []Request, force bool) harvest.BatchSummary {
	summary := harvest.BatchSummary{Requested: len(reqs)}
	if len(reqs) == 0 {
		return summary
	}

	jobs := make(chan Request)
	outcomes := make(chan harvest.Outcome, len(reqs))

	workers := d.cfg.Workers
	if workers > len(reqs) {
		workers = len(reqs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				outcomes <- d.downloadOne(ctx, req, force)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, req := range reqs {
			select {
			case jobs <- req:
			case <-ctx.Done():
				// Unsubmitted items still resolve to an outcome.
				outcomes <- harvest.Outcome{
					URL: req.URL,
					Err: &harvest.DownloadError{Kind: harvest.KindNetwork, URL: req.URL, Err: ctx.Err()},
				}
			}
		}
	}()

	for i := 0; i < len(reqs); i++ {
		out := <-outcomes
		if out.Success {
			summary.Downloaded = append(summary.Downloaded, out.Path)
		} else {
			summary.Failed = append(summary.Failed, out)
		}
	}
	wg.Wait()
	return summary
}

// downloadOne runs the full pipeline for a single request. Every request
// resolves to exactly one outcome.
func (d *Downloader) downloadOne(ctx context.Context, req Request, force bool) harvest.Outcome {
	key := req.Key
	if key == "" {
		key = d.storage.KeyFor(req.URL)
	}

	if !force && d.storage.Exists(key) {
		// Dedup short-circuit: zero network I/O, no jitter sleep. The
		// outcome resolves to the existing location so callers see the
		// same path a fresh download would have returned.
		d.logger.Debug("image already materialized", zap.String("url", req.URL), zap.String("key", key))
		return harvest.Outcome{URL: req.URL, Path: d.storage.Path(key), Success: true, Cached: true}
	}

	start := time.Now()
	body, err := d.fetch(ctx, req.URL)
	if err != nil {
		metrics.DownloadFailed(string(harvest.KindOf(err)))
		return harvest.Outcome{URL: req.URL, Err: err}
	}

	img, _, err := imaging.Decode(body)
	if err != nil {
		derr := &harvest.DownloadError{Kind: harvest.KindDecode, URL: req.URL, Err: err}
		metrics.DownloadFailed(string(harvest.KindDecode))
		return harvest.Outcome{URL: req.URL, Err: derr}
	}

	path, err := d.storage.Save(imaging.Normalize(img), key)
	if err != nil {
		derr := &harvest.DownloadError{Kind: harvest.KindStorage, URL: req.URL, Err: err}
		metrics.DownloadFailed(string(harvest.KindStorage))
		return harvest.Outcome{URL: req.URL, Err: derr}
	}

	metrics.ImageDownloaded()
	metrics.ObserveDownloadDuration(time.Since(start))
	d.jitterSleep(ctx)
	return harvest.Outcome{URL: req.URL, Path: path, Success: true}
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &harvest.DownloadError{Kind: harvest.KindNetwork, URL: url, Err: err}
	}
	httpReq.Header.Set("User-Agent", d.cfg.UserAgent)
	if d.cfg.Referer != "" {
		httpReq.Header.Set("Referer", d.cfg.Referer)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, &harvest.DownloadError{Kind: harvest.KindNetwork, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &harvest.DownloadError{
			Kind: harvest.KindHTTP,
			URL:  url,
			Err:  fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &harvest.DownloadError{Kind: harvest.KindNetwork, URL: url, Err: err}
	}
	return body, nil
}

// jitterSleep pauses the calling goroutine for a uniform random duration in
// [MinWait, MaxWait]. Fresh successes only; cache hits and failures return
// immediately to the pool.
func (d *Downloader) jitterSleep(ctx context.Context) {
	if d.cfg.MaxWait <= 0 {
		return
	}
	span := d.cfg.MaxWait - d.cfg.MinWait
	wait := d.cfg.MinWait
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span) + 1))
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
