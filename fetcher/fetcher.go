// Package fetcher loads property pages, either through a headless browser for
// JavaScript-rendered sites or over plain HTTP for static ones, and exposes
// them as goquery selections.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page-level failures. ErrTimeout and ErrNetwork end a source run;
// ErrElementNotFound is reported when a static page lacks a selector.
var (
	ErrTimeout         = errors.New("fetch timeout")
	ErrNetwork         = errors.New("fetch network error")
	ErrElementNotFound = errors.New("element not found")
)

// Fetcher opens pages.
type Fetcher interface {
	Load(ctx context.Context, url string) (Page, error)
}

// Page is one loaded page. Callers must Close it.
type Page interface {
	// URL is the final page address, used to resolve relative links.
	URL() string
	// WaitFor blocks until selector is visible or timeout elapses, then
	// returns the matching elements from a snapshot of the page.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (*goquery.Selection, error)
	// Document returns a snapshot of the whole page.
	Document(ctx context.Context) (*goquery.Document, error)
	Close()
}

// classify maps a low-level error onto ErrTimeout or ErrNetwork.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrElementNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w: %v", op, target, ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s %s: %w: %v", op, target, ErrTimeout, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, target, ErrNetwork, err)
}

// retryable reports whether a load error may succeed on another attempt.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrElementNotFound)
}

// ResolveURL resolves href against base. Absolute hrefs are returned as-is.
func ResolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
