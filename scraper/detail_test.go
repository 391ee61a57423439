package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-tracker/fetcher"
	"apartment-tracker/fetcher/fetchertest"
	"apartment-tracker/models"
	"apartment-tracker/utils"
)

const leasePage = `<html><body>
<div id="divTermInfo">
  <div id="DateDiv"><label>Move-in</label><input type="text" value=" 08/15/2024 "></div>
  <div id="divPricingInfo"><div>12 Month Lease</div><div>$2,210</div></div>
</div>
</body></html>`

func loadPage(t *testing.T, html string) fetcher.Page {
	t.Helper()
	m := fetchertest.New(map[string]string{"https://lease.example.com/u1": html})
	page, err := m.Load(context.Background(), "https://lease.example.com/u1")
	require.NoError(t, err)
	return page
}

func TestLeaseTermExtractor(t *testing.T) {
	page := loadPage(t, leasePage)
	defer page.Close()

	sup, err := LeaseTermExtractor.Extract(context.Background(), page, time.Second)
	require.NoError(t, err)
	require.NotNil(t, sup.EffectiveRent)
	require.NotNil(t, sup.AvailabilityRaw)
	assert.Equal(t, "$2,210", *sup.EffectiveRent)
	assert.Equal(t, "08/15/2024", *sup.AvailabilityRaw)
}

func TestLeaseTermExtractorMissingPricing(t *testing.T) {
	page := loadPage(t, `<div id="divTermInfo"><div id="DateDiv"><input value="08/15/2024"></div></div>`)
	defer page.Close()

	_, err := LeaseTermExtractor.Extract(context.Background(), page, time.Second)
	assert.ErrorIs(t, err, ErrStructuralParse)
}

func TestLeaseTermExtractorMissingTerms(t *testing.T) {
	page := loadPage(t, `<div id="other"></div>`)
	defer page.Close()

	_, err := LeaseTermExtractor.Extract(context.Background(), page, time.Second)
	assert.ErrorIs(t, err, fetcher.ErrElementNotFound)
}

func TestLeaseTermExtractorSingleLinePricing(t *testing.T) {
	page := loadPage(t, `<div id="divTermInfo"><div id="divPricingInfo">Call for pricing</div></div>`)
	defer page.Close()

	sup, err := LeaseTermExtractor.Extract(context.Background(), page, time.Second)
	require.NoError(t, err)
	assert.Nil(t, sup.EffectiveRent)
	assert.Nil(t, sup.AvailabilityRaw)
}

func links(urls ...string) []models.DetailLink {
	out := make([]models.DetailLink, len(urls))
	for i, u := range urls {
		out[i] = models.DetailLink(u)
	}
	return out
}

func TestResolveFailureIsAbsentNotFatal(t *testing.T) {
	m := fetchertest.New(map[string]string{
		"https://lease.example.com/a": leasePage,
		"https://lease.example.com/c": leasePage,
	})
	m.Fail("https://lease.example.com/b", fmt.Errorf("boom: %w", fetcher.ErrNetwork))

	r := NewDetailResolver("Test", m, LeaseTermExtractor, ResolverOptions{MaxConcurrency: 2}, utils.Discard())
	got := r.Resolve(context.Background(), links(
		"https://lease.example.com/a",
		"https://lease.example.com/b",
		"https://lease.example.com/c",
		"",
	))

	require.Len(t, got, 3)
	assert.Equal(t, "$2,210", *got["https://lease.example.com/a"].EffectiveRent)
	assert.Equal(t, "$2,210", *got["https://lease.example.com/c"].EffectiveRent)
	assert.Equal(t, models.SupplementalFields{}, got["https://lease.example.com/b"])
	_, hasEmpty := got[""]
	assert.False(t, hasEmpty)
}

func TestResolveVisitsDuplicateLinksIndependently(t *testing.T) {
	m := fetchertest.New(map[string]string{"https://lease.example.com/a": leasePage})
	r := NewDetailResolver("Test", m, LeaseTermExtractor, ResolverOptions{MaxConcurrency: 2}, utils.Discard())

	got := r.Resolve(context.Background(), links("https://lease.example.com/a", "https://lease.example.com/a"))
	assert.Len(t, got, 1)
	assert.Equal(t, 2, m.Loads("https://lease.example.com/a"))
}

func TestResolveRespectsConcurrencyLimit(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("https://lease.example.com/%d", i)
		pages[u] = leasePage
		urls = append(urls, u)
	}
	m := fetchertest.New(pages)
	m.OnLoad = func(ctx context.Context, url string) { time.Sleep(10 * time.Millisecond) }

	r := NewDetailResolver("Test", m, LeaseTermExtractor, ResolverOptions{MaxConcurrency: 3}, utils.Discard())
	got := r.Resolve(context.Background(), links(urls...))

	assert.Len(t, got, 12)
	assert.LessOrEqual(t, m.Peak(), int64(3))
	assert.Greater(t, m.Peak(), int64(1))
}

func TestResolveTimeoutPerLink(t *testing.T) {
	m := fetchertest.New(map[string]string{
		"https://lease.example.com/slow": leasePage,
		"https://lease.example.com/fast": leasePage,
	})
	m.OnLoad = func(ctx context.Context, url string) {
		if url == "https://lease.example.com/slow" {
			<-ctx.Done()
		}
	}

	r := NewDetailResolver("Test", m, LeaseTermExtractor, ResolverOptions{MaxConcurrency: 2, Timeout: 50 * time.Millisecond}, utils.Discard())
	got := r.Resolve(context.Background(), links("https://lease.example.com/slow", "https://lease.example.com/fast"))

	assert.Equal(t, models.SupplementalFields{}, got["https://lease.example.com/slow"])
	require.NotNil(t, got["https://lease.example.com/fast"].EffectiveRent)
}

func TestResolveCancelledFillsAbsent(t *testing.T) {
	m := fetchertest.New(map[string]string{
		"https://lease.example.com/a": leasePage,
		"https://lease.example.com/b": leasePage,
		"https://lease.example.com/c": leasePage,
	})
	ctx, cancel := context.WithCancel(context.Background())
	var n int32
	m.OnLoad = func(_ context.Context, _ string) {
		if atomic.AddInt32(&n, 1) == 1 {
			cancel()
		}
	}

	r := NewDetailResolver("Test", m, LeaseTermExtractor, ResolverOptions{MaxConcurrency: 1}, utils.Discard())
	got := r.Resolve(ctx, links("https://lease.example.com/a", "https://lease.example.com/b", "https://lease.example.com/c"))

	require.Len(t, got, 3)
	for link, sup := range got {
		assert.Equal(t, models.SupplementalFields{}, sup, "link %s", link)
	}
}

func TestDetailExtractorFunc(t *testing.T) {
	want := errors.New("nope")
	var ex DetailExtractor = DetailExtractorFunc(func(context.Context, fetcher.Page, time.Duration) (models.SupplementalFields, error) {
		return models.SupplementalFields{}, want
	})
	_, err := ex.Extract(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, want)
}
