package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"apartment-tracker/utils"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ChromeBin   string
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration
	MaxRetries  int
}

// ChromeFetcher drives one shared Chrome process. Every Load opens its own
// tab, so concurrent loads never share page state.
type ChromeFetcher struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	pageTimeout time.Duration
	retry       *utils.RetryConfig
	logger      *utils.Logger
}

// NewChromeFetcher starts the browser. Close releases it.
func NewChromeFetcher(opts ChromeOptions, logger *utils.Logger) (*ChromeFetcher, error) {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[chrome] Using browser binary: %s", chromeBin)

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(ua),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chrome: start browser: %w", err)
	}

	pageTimeout := opts.PageTimeout
	if pageTimeout <= 0 {
		pageTimeout = 10 * time.Second
	}

	return &ChromeFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		pageTimeout: pageTimeout,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   retryable,
		},
		logger: logger,
	}, nil
}

// Load opens url in a fresh tab. The tab is closed when the page is closed or
// ctx is cancelled.
func (f *ChromeFetcher) Load(ctx context.Context, url string) (Page, error) {
	var page *chromePage

	err := f.retry.Do(ctx, "load "+url, func() error {
		tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
		stop := context.AfterFunc(ctx, cancelTab)
		closeTab := func() {
			stop()
			cancelTab()
		}

		runCtx, cancelRun := context.WithTimeout(tabCtx, f.pageTimeout)
		defer cancelRun()

		var location string
		if err := chromedp.Run(runCtx,
			chromedp.Navigate(url),
			chromedp.Location(&location),
		); err != nil {
			closeTab()
			return classify("navigate", url, err)
		}

		page = &chromePage{ctx: tabCtx, close: closeTab, url: location, timeout: f.pageTimeout}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Close shuts the browser down.
func (f *ChromeFetcher) Close() {
	f.cancel()
}

type chromePage struct {
	ctx     context.Context
	close   func()
	url     string
	timeout time.Duration
}

func (p *chromePage) URL() string { return p.url }

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error) {
	var html string
	err := p.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, classify("wait for", selector, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("chrome: parse snapshot: %w", err)
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return sel, nil
}

func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := p.run(ctx, p.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, classify("snapshot", p.url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("chrome: parse snapshot: %w", err)
	}
	return doc, nil
}

func (p *chromePage) Close() { p.close() }

// run executes actions in the page's tab, bounded by timeout and by the
// caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
