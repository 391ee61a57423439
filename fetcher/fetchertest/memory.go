// Package fetchertest provides an in-memory Fetcher for adapter and pipeline
// tests.
package fetchertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"apartment-tracker/fetcher"
)

// Memory serves fixed HTML by URL. Unknown URLs fail with ErrNetwork, and
// entries in Errors fail with the given error.
type Memory struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	loads  map[string]int
	active int64
	peak   int64

	// OnLoad, when set, runs inside every Load before the page is returned.
	OnLoad func(ctx context.Context, url string)
}

// New creates a Memory fetcher serving pages.
func New(pages map[string]string) *Memory {
	m := &Memory{
		pages: make(map[string]string, len(pages)),
		errs:  make(map[string]error),
		loads: make(map[string]int),
	}
	for k, v := range pages {
		m.pages[k] = v
	}
	return m
}

// Fail makes every Load of url return err.
func (m *Memory) Fail(url string, err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
	return m
}

// Loads reports how many times url was loaded.
func (m *Memory) Loads(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[url]
}

// Peak reports the highest number of concurrent Loads observed.
func (m *Memory) Peak() int64 {
	return atomic.LoadInt64(&m.peak)
}

func (m *Memory) Load(ctx context.Context, url string) (fetcher.Page, error) {
	n := atomic.AddInt64(&m.active, 1)
	defer atomic.AddInt64(&m.active, -1)
	for {
		p := atomic.LoadInt64(&m.peak)
		if n <= p || atomic.CompareAndSwapInt64(&m.peak, p, n) {
			break
		}
	}

	m.mu.Lock()
	m.loads[url]++
	html, ok := m.pages[url]
	err := m.errs[url]
	m.mu.Unlock()

	if m.OnLoad != nil {
		m.OnLoad(ctx, url)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("memory: %s: %w", url, fetcher.ErrNetwork)
	}

	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if perr != nil {
		return nil, perr
	}
	return fetcher.NewStaticPage(doc, url), nil
}
