package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-tracker/utils"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://example.com/floorplans", "/floorplans/a1", "https://example.com/floorplans/a1"},
		{"https://example.com/floorplans/", "a1", "https://example.com/floorplans/a1"},
		{"https://example.com/x", "https://other.com/lease?u=1", "https://other.com/lease?u=1"},
		{"https://example.com/x", "", ""},
	}
	for _, tt := range tests {
		if got := ResolveURL(tt.base, tt.href); got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q; want %q", tt.base, tt.href, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("get", "u", context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classify("get", "u", errors.New("connection refused")), ErrNetwork)
	assert.ErrorIs(t, classify("get", "u", fmt.Errorf("x: %w", ErrElementNotFound)), ErrElementNotFound)
	assert.NoError(t, classify("get", "u", nil))
}

func newTestHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New().SetTimeout(timeout)
	return NewHTTPFetcherWithClient(client, &utils.RetryConfig{MaxAttempts: 1, Logger: utils.Discard()})
}

func TestHTTPFetcherLoadsAndSelects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="availabilities-list__item">#501</div></body></html>`)
	}))
	defer srv.Close()

	f := newTestHTTPFetcher(time.Second)
	page, err := f.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	defer page.Close()

	sel, err := page.WaitFor(context.Background(), ".availabilities-list__item", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "#501", sel.Text())

	_, err = page.WaitFor(context.Background(), "#missing", time.Second)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestHTTPFetcher(time.Second).Load(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := newTestHTTPFetcher(50*time.Millisecond).Load(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTimeout)
}
