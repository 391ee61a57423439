package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"apartment-tracker/fetcher"
	"apartment-tracker/models"
	"apartment-tracker/utils"
)

// DetailExtractor reads supplemental fields from a loaded detail page.
type DetailExtractor interface {
	Extract(ctx context.Context, page fetcher.Page, timeout time.Duration) (models.SupplementalFields, error)
}

// DetailExtractorFunc adapts a function to DetailExtractor.
type DetailExtractorFunc func(ctx context.Context, page fetcher.Page, timeout time.Duration) (models.SupplementalFields, error)

func (f DetailExtractorFunc) Extract(ctx context.Context, page fetcher.Page, timeout time.Duration) (models.SupplementalFields, error) {
	return f(ctx, page, timeout)
}

// LeaseTermExtractor reads the RentCafe lease page: the move-in date input and
// the second line of the pricing box, which holds the 12-month rent.
//
// The date input defaults to the page's own suggestion rather than the
// earliest move-in date, so the rent shown may be for a later start.
var LeaseTermExtractor DetailExtractor = DetailExtractorFunc(extractLeaseTerms)

func extractLeaseTerms(ctx context.Context, page fetcher.Page, timeout time.Duration) (models.SupplementalFields, error) {
	var sup models.SupplementalFields

	terms, err := page.WaitFor(ctx, "#divTermInfo", timeout)
	if err != nil {
		return sup, err
	}

	pricing := terms.Find("#divPricingInfo")
	if pricing.Length() == 0 {
		return sup, fmt.Errorf("%w: #divPricingInfo not found", ErrStructuralParse)
	}
	if lines := TextLines(pricing); len(lines) > 1 {
		rent := lines[1]
		sup.EffectiveRent = &rent
	}

	if v, ok := terms.Find("#DateDiv input").First().Attr("value"); ok {
		if v = strings.TrimSpace(v); v != "" {
			sup.AvailabilityRaw = &v
		}
	}
	return sup, nil
}

// ResolverOptions bounds detail-page resolution.
type ResolverOptions struct {
	MaxConcurrency int
	RateLimitMs    int
	// Timeout bounds one link's visit, load and extraction together.
	Timeout time.Duration
}

// DetailResolver visits each unit's detail page and collects its
// supplemental fields.
type DetailResolver struct {
	source    string
	fetcher   fetcher.Fetcher
	extractor DetailExtractor
	opts      ResolverOptions
	logger    *utils.Logger
}

// NewDetailResolver creates a resolver for one source.
func NewDetailResolver(source string, f fetcher.Fetcher, extractor DetailExtractor, opts ResolverOptions, logger *utils.Logger) *DetailResolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &DetailResolver{
		source:    source,
		fetcher:   f,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// Resolve visits every non-empty link and returns a mapping with an entry for
// each of them. Visits run concurrently up to MaxConcurrency and each one is
// independent, even when two units share a link. A failed or cancelled visit
// yields all-absent fields.
func (r *DetailResolver) Resolve(ctx context.Context, links []models.DetailLink) map[models.DetailLink]models.SupplementalFields {
	out := make(map[models.DetailLink]models.SupplementalFields, len(links))
	var mu sync.Mutex

	pool := utils.NewWorkerPool(ctx, r.opts.MaxConcurrency, r.opts.RateLimitMs)
	for _, link := range links {
		if link == "" {
			continue
		}
		pool.Submit(func(ctx context.Context) {
			sup, err := r.visit(ctx, link)
			if err != nil {
				r.logger.Warn("[detail] %s: link %s: %v", r.source, link, err)
			} else {
				r.logger.Debug("[detail] %s: resolved %s", r.source, link)
			}
			mu.Lock()
			out[link] = sup
			mu.Unlock()
		})
	}
	pool.Wait()

	for _, link := range links {
		if _, ok := out[link]; !ok && link != "" {
			out[link] = models.SupplementalFields{}
		}
	}
	return out
}

func (r *DetailResolver) visit(ctx context.Context, link models.DetailLink) (models.SupplementalFields, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	page, err := r.fetcher.Load(ctx, string(link))
	if err != nil {
		return models.SupplementalFields{}, err
	}
	defer page.Close()

	sup, err := r.extractor.Extract(ctx, page, r.opts.Timeout)
	if err != nil {
		return models.SupplementalFields{}, err
	}
	return sup, nil
}
