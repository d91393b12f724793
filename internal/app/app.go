// Package app assembles the harvest pipeline: navigators, the bounded item
// queue, crawl and download workers, storage, and the optional metrics
// listener, all driven from one loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/config"
	"github.com/galleryharvest/galleryharvest/internal/coord"
	"github.com/galleryharvest/galleryharvest/internal/crawler"
	"github.com/galleryharvest/galleryharvest/internal/downloader"
	"github.com/galleryharvest/galleryharvest/internal/harvest"
	"github.com/galleryharvest/galleryharvest/internal/hash/sha256"
	"github.com/galleryharvest/galleryharvest/internal/loader"
	"github.com/galleryharvest/galleryharvest/internal/metrics"
	chromenav "github.com/galleryharvest/galleryharvest/internal/navigator/chromedp"
	"github.com/galleryharvest/galleryharvest/internal/progress"
	"github.com/galleryharvest/galleryharvest/internal/queue/memory"
	"github.com/galleryharvest/galleryharvest/internal/skipset"
	"github.com/galleryharvest/galleryharvest/internal/storage/local"
)

// queuePerSource sizes the shared queue relative to the producer count so a
// burst of discoveries buffers without decoupling crawl from download.
const queuePerSource = 10

// NavigatorFactory builds the navigator for one gallery source. Tests swap
// in scripted navigators; production uses the headless Chrome one.
type NavigatorFactory func(id int, startURL string) (harvest.Navigator, error)

// App owns one harvest run.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	newNav     NavigatorFactory
	httpClient *http.Client
}

// Option adjusts App construction.
type Option func(*App)

// WithNavigatorFactory replaces the default Chrome-backed navigator factory.
func WithNavigatorFactory(f NavigatorFactory) Option {
	return func(a *App) { a.newNav = f }
}

// WithHTTPClient replaces the image fetch client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// New validates the configuration and prepares a run.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.newNav == nil {
		a.newNav = a.chromeNavigator
	}
	return a, nil
}

func (a *App) chromeNavigator(id int, startURL string) (harvest.Navigator, error) {
	return chromenav.New(chromenav.Config{
		UserAgent: a.cfg.Crawler.UserAgent,
		OpTimeout: a.cfg.Crawler.OpTimeout(),
		NavQPS:    a.cfg.Crawler.NavQPS,
	}, a.logger.Named("navigator").With(zap.Int("source", id)))
}

// Run executes the harvest until the download target is met, every gallery
// is exhausted, or the context is canceled. It always drains admitted items
// before returning.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))
	logger.Info("harvest starting",
		zap.Int("sources", len(a.cfg.Links)),
		zap.Int("count", a.cfg.Harvest.Count),
		zap.String("output_dir", a.cfg.Harvest.OutputDir),
	)

	metrics.Init()

	skip, err := skipset.FromDirs(a.cfg.Harvest.OutputDir, a.cfg.Harvest.PrevDir)
	if err != nil {
		return fmt.Errorf("build skip set: %w", err)
	}
	if skip.Size() > 0 {
		logger.Info("skipping previously downloaded images", zap.Int("known", skip.Size()))
	}

	store, err := local.New(local.Config{
		BaseDir:     a.cfg.Harvest.OutputDir,
		JPEGQuality: a.cfg.Storage.JPEGQuality,
	}, sha256.New(), skip)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Images already on disk count toward the requested total, matching
	// resumed-run semantics: asking for 100 with 40 present fetches 60.
	target := int64(a.cfg.Harvest.Count)
	if target > 0 {
		existing := countFiles(a.cfg.Harvest.OutputDir)
		if existing >= target {
			logger.Info("output directory already satisfies the requested count",
				zap.Int64("existing", existing),
				zap.Int64("requested", target),
			)
			return nil
		}
		if existing > 0 {
			logger.Info("resuming toward requested count",
				zap.Int64("existing", existing),
				zap.Int64("remaining", target-existing),
			)
			target -= existing
		}
	}

	queue := memory.NewQueue(queuePerSource * len(a.cfg.Links))
	stop := coord.NewFlag()
	reporter := progress.NewReporter(target, 5*time.Second, logger.Named("progress"))

	dl := downloader.New(store, a.httpClient, downloader.Config{
		Workers:   a.cfg.Download.Workers,
		Timeout:   a.cfg.Download.Timeout(),
		MinWait:   a.cfg.Download.MinWait(),
		MaxWait:   a.cfg.Download.MaxWait(),
		UserAgent: a.cfg.Crawler.UserAgent,
		Referer:   a.cfg.Download.Referer,
	}, logger.Named("downloader"))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go reporter.Run(runCtx)
	stopMetrics := a.serveMetrics(logger)
	defer stopMetrics()

	var producers sync.WaitGroup
	for i, link := range a.cfg.Links {
		nav, err := a.newNav(i, link)
		if err != nil {
			// Surviving sources carry the run; a browser that fails to
			// start on one link should not abort the others.
			logger.Error("navigator start failed", zap.Int("source", i), zap.Error(err))
			continue
		}
		w := crawler.New(i, nav, queue, stop, reporter, crawler.Config{
			StartURL:   link,
			ErrorPause: a.cfg.Crawler.ErrorPause(),
		}, logger.Named("crawler").With(zap.Int("source", i)))
		producers.Add(1)
		go func() {
			defer producers.Done()
			w.Run(runCtx)
		}()
	}

	loaderCfg := loader.Config{
		ChunkSize:    a.cfg.Loader.ChunkSize,
		PollInterval: a.cfg.Loader.PollInterval(),
		MinWidth:     a.cfg.Harvest.MinWidth,
		MinHeight:    a.cfg.Harvest.MinHeight,
	}

	consumers := a.cfg.Loader.ConsumersPerSource * len(a.cfg.Links)
	var consumerWG sync.WaitGroup
	for i := 0; i < consumers; i++ {
		w := loader.New(queue, dl, stop, reporter, loaderCfg,
			logger.Named("loader").With(zap.Int("worker", i)))
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			w.Run(runCtx)
		}()
	}

	// When every gallery runs dry before the target is met there is
	// nothing left to discover; signal termination so consumers drain
	// the tail and exit.
	go func() {
		producers.Wait()
		if !stop.IsSet() {
			logger.Info("all sources exhausted, signaling termination")
			stop.Set()
		}
	}()

	consumerWG.Wait()

	// A producer blocked in Put when the signal fired can land its item
	// after the last consumer's final drain. Once every producer has
	// exited the queue is quiescent; sweep it one more time so admitted
	// items are never abandoned.
	producers.Wait()
	sweeper := loader.New(queue, dl, stop, reporter, loaderCfg, logger.Named("sweeper"))
	sweeper.Run(runCtx)

	cancel()
	reporter.Summary()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveMetrics starts the Prometheus/health listener when enabled and
// returns a shutdown func. Disabled metrics return a no-op.
func (a *App) serveMetrics(logger *zap.Logger) func() {
	if !a.cfg.Metrics.Enabled {
		return func() {}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: r}
	go func() {
		logger.Info("metrics listener starting", zap.String("addr", a.cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener failed", zap.Error(err))
		}
	}()

	return func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Warn("metrics listener shutdown failed", zap.Error(err))
		}
	}
}

// countFiles returns the number of regular files directly under dir. A
// missing directory counts as empty.
func countFiles(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var n int64
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n
}
