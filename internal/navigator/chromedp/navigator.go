// Package chromedp implements the gallery navigator on headless Chrome.
package chromedp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/galleryharvest/galleryharvest/internal/harvest"
)

// Config controls the browser session and the gallery selectors.
type Config struct {
	// UserAgent overrides the browser user agent.
	UserAgent string
	// OpTimeout bounds each navigation or extraction step.
	OpTimeout time.Duration
	// NavQPS throttles navigation actions against the gallery host;
	// zero disables the budget.
	NavQPS float64

	// PreviewSelector locates the full-size preview image element.
	PreviewSelector string
	// SizeSelector locates the "W×H" dimension label; candidates after
	// the first are fallbacks.
	SizeSelector string
	// SizeFallbackSelector is scanned for a parseable label when the
	// primary selector yields nothing.
	SizeFallbackSelector string
	// NextSelector locates the advance-to-next button.
	NextSelector string
}

func (c *Config) applyDefaults() {
	if c.OpTimeout <= 0 {
		c.OpTimeout = 20 * time.Second
	}
	if c.PreviewSelector == "" {
		c.PreviewSelector = "img.MMImage-Preview"
	}
	if c.SizeSelector == "" {
		c.SizeSelector = "span[class*='OpenImageButton-SaveSize']"
	}
	if c.SizeFallbackSelector == "" {
		c.SizeFallbackSelector = "span[class*='Button2-Text']"
	}
	if c.NextSelector == "" {
		c.NextSelector = "button[class*='CircleButton_type_next']"
	}
}

// Navigator walks a gallery inside one headless Chrome session. All
// operations run in a single tab so page state carries across steps.
type Navigator struct {
	allocatorCancel context.CancelFunc
	browserCancel   context.CancelFunc
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	limiter         *rate.Limiter
	cfg             Config
	logger          *zap.Logger
}

// New launches the browser and warms it up.
func New(cfg Config, logger *zap.Logger) (*Navigator, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	var limiter *rate.Limiter
	if cfg.NavQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavQPS), 1)
	}

	return &Navigator{
		allocatorCancel: allocatorCancel,
		browserCancel:   browserCancel,
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		limiter:         limiter,
		cfg:             cfg,
		logger:          logger,
	}, nil
}

// Open navigates the session to the gallery's start preview.
func (n *Navigator) Open(ctx context.Context, startURL string) error {
	if err := n.waitBudget(ctx); err != nil {
		return err
	}
	opCtx, cancel := n.opContext(ctx)
	defer cancel()

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.ActionFunc(func(c context.Context) error {
			if n.cfg.UserAgent == "" {
				return nil
			}
			return emulation.SetUserAgentOverride(n.cfg.UserAgent).Do(c)
		}),
		chromedp.Navigate(startURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(opCtx, tasks); err != nil {
		return fmt.Errorf("open gallery %s: %w", startURL, err)
	}
	return nil
}

// CurrentItem extracts the preview link and, when available, its advertised
// dimensions. A missing or unparseable dimension label degrades to unknown
// dimensions and never fails the extraction.
func (n *Navigator) CurrentItem(ctx context.Context) (harvest.Item, error) {
	opCtx, cancel := n.opContext(ctx)
	defer cancel()

	// Waits for the preview element; a transition between previews is a
	// timeout error here, which the crawl worker retries after a pause.
	var link string
	var linkOK bool
	if err := chromedp.Run(opCtx,
		chromedp.AttributeValue(n.cfg.PreviewSelector, "src", &link, &linkOK, chromedp.ByQuery),
	); err != nil {
		return harvest.Item{}, fmt.Errorf("locate preview image: %w", err)
	}
	if !linkOK || link == "" {
		return harvest.Item{}, harvest.ErrExhausted
	}

	item := harvest.Item{Link: link}
	item.Width, item.Height = n.extractSize(opCtx)
	return item, nil
}

// extractSize reads the dimension label. Absence is expected on some
// layouts, so every failure path returns unknown dimensions.
func (n *Navigator) extractSize(ctx context.Context) (int, int) {
	var label string
	if err := chromedp.Run(ctx,
		chromedp.Text(n.cfg.SizeSelector, &label, chromedp.ByQuery, chromedp.AtLeast(0)),
	); err == nil {
		if w, h, ok := ParseDimensions(label); ok {
			return w, h
		}
	}

	var labels []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		fmt.Sprintf(
			`Array.from(document.querySelectorAll(%q)).map(e => e.textContent)`,
			n.cfg.SizeFallbackSelector,
		),
		&labels,
	)); err != nil {
		n.logger.Debug("dimension label extraction failed", zap.Error(err))
		return 0, 0
	}
	for _, candidate := range labels {
		if w, h, ok := ParseDimensions(candidate); ok {
			return w, h
		}
	}
	return 0, 0
}

// Advance clicks through to the next preview. A missing next button means
// the gallery is exhausted, which is reported as done rather than an error.
func (n *Navigator) Advance(ctx context.Context) (bool, error) {
	if err := n.waitBudget(ctx); err != nil {
		return false, err
	}
	opCtx, cancel := n.opContext(ctx)
	defer cancel()

	var present bool
	if err := chromedp.Run(opCtx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelector(%q) !== null`, n.cfg.NextSelector),
		&present,
	)); err != nil {
		return false, fmt.Errorf("probe next button: %w", err)
	}
	if !present {
		return false, nil
	}

	if err := chromedp.Run(opCtx,
		chromedp.Click(n.cfg.NextSelector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return false, fmt.Errorf("advance gallery: %w", err)
	}
	return true, nil
}

// Close tears down the tab, browser, and allocator contexts.
func (n *Navigator) Close() error {
	n.tabCancel()
	n.browserCancel()
	n.allocatorCancel()
	return nil
}

// opContext bounds one operation on the persistent tab. The timeout cancels
// the operation, never the tab itself.
func (n *Navigator) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	taskCtx, cancelTask := context.WithTimeout(n.tabCtx, n.cfg.OpTimeout)
	stopForward := forwardCancel(ctx, cancelTask)
	return taskCtx, func() {
		stopForward()
		cancelTask()
	}
}

func (n *Navigator) waitBudget(ctx context.Context) error {
	if n.limiter == nil {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigation rate limit: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// ParseDimensions parses a "1920×1080" style label. Both the multiplication
// sign and a plain 'x' separator are accepted.
func ParseDimensions(label string) (int, int, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, 0, false
	}
	var parts []string
	switch {
	case strings.ContainsRune(label, '×'):
		parts = strings.SplitN(label, "×", 2)
	case strings.ContainsRune(label, 'x'):
		parts = strings.SplitN(label, "x", 2)
	default:
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
