package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/models"
	"apartment-tracker/utils"
)

// Base carries what every family adapter needs. Adapters embed it.
type Base struct {
	Source  config.Source
	Fetcher fetcher.Fetcher
	// Timeout bounds each wait for an expected container.
	Timeout time.Duration
	Logger  *utils.Logger
}

// NewBase fills in a default timeout.
func NewBase(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) Base {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Base{Source: src, Fetcher: f, Timeout: timeout, Logger: logger}
}

func (b Base) Name() string { return b.Source.Name }

// Open loads url and waits for selector. The caller closes the page. Errors
// are page-level and name the source.
func (b Base) Open(ctx context.Context, url, selector string) (fetcher.Page, *goquery.Selection, error) {
	page, err := b.Fetcher.Load(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: load: %w", b.Source.Name, err)
	}
	sel, err := page.WaitFor(ctx, selector, b.Timeout)
	if err != nil {
		page.Close()
		return nil, nil, fmt.Errorf("%s: wait for %s: %w", b.Source.Name, selector, err)
	}
	return page, sel, nil
}

// Link returns href as a DetailLink when the source resolves detail pages.
func (b Base) Link(href string) models.DetailLink {
	if !b.Source.Detail {
		return ""
	}
	return models.DetailLink(href)
}

// Skip records a structural failure for ref under this source.
func (b Base) Skip(ref, format string, args ...any) Result {
	return Skip(b.Source.Name, ref, format, args...)
}
