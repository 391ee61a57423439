package utils

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines with a minimum
// spacing between job starts. A pool is used for one batch: Submit jobs, then
// Wait once.
type WorkerPool struct {
	rateLimitMs int
	group       *errgroup.Group
	ctx         context.Context
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
// Jobs receive a context that is cancelled when ctx is.
func NewWorkerPool(ctx context.Context, maxWorkers, rateLimitMs int) *WorkerPool {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(maxWorkers, 1))
	return &WorkerPool{
		rateLimitMs: rateLimitMs,
		group:       g,
		ctx:         gctx,
	}
}

// Submit enqueues a job for execution in the pool. It blocks while all workers
// are busy. Jobs submitted after the context is done are skipped.
func (wp *WorkerPool) Submit(job func(ctx context.Context)) {
	wp.group.Go(func() error {
		if wp.ctx.Err() != nil {
			return nil
		}
		if err := wp.enforceRateLimit(); err != nil {
			return nil
		}
		job(wp.ctx)
		return nil
	})
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	_ = wp.group.Wait()
}

func (wp *WorkerPool) enforceRateLimit() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if !wp.lastRequest.IsZero() {
		if elapsed := time.Since(wp.lastRequest); elapsed < minInterval {
			if err := sleepCtx(wp.ctx, minInterval-elapsed); err != nil {
				return err
			}
		}
	}
	wp.lastRequest = time.Now()
	return nil
}

// LinkSet collects links once each, in the order first added. Links that
// differ only by fragment, host case or a trailing slash count as the same.
type LinkSet struct {
	mu    sync.Mutex
	index map[string]int
	links []string
}

func NewLinkSet() *LinkSet {
	return &LinkSet{index: make(map[string]int)}
}

// Add records link and reports whether it was new.
func (s *LinkSet) Add(link string) bool {
	key := linkKey(link)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.links)
	s.links = append(s.links, link)
	return true
}

// Links returns the distinct links as first added.
func (s *LinkSet) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}

func linkKey(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
