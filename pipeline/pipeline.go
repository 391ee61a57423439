// Package pipeline drives one source run end to end: fetch, resolve detail
// pages, normalize, export and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apartment-tracker/fetcher"
	"apartment-tracker/models"
	"apartment-tracker/scraper"
	"apartment-tracker/services"
	"apartment-tracker/storage"
	"apartment-tracker/utils"
)

// Site is one configured source ready to run.
type Site struct {
	Name    string
	Adapter scraper.Adapter
	// Detail, when set, is run over every listing's detail link using
	// DetailFetcher.
	Detail        scraper.DetailExtractor
	DetailFetcher fetcher.Fetcher
}

// Exporter writes a finished batch for human inspection.
type Exporter interface {
	Export(source string, retrievedAt time.Time, units []models.CanonicalUnit) (string, error)
}

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Resolver scraper.ResolverOptions
	// Clock supplies the retrieval timestamp.
	Clock    func() time.Time
	NewRunID func() string
}

// RunReport describes one source run.
type RunReport struct {
	Source         string
	RunID          string
	Units          []models.CanonicalUnit
	Skipped        int
	DetailFailures int
	ExportPath     string
	// Err is the run's failure, as set by RunAll.
	Err error
}

type Pipeline struct {
	normalizer *services.Normalizer
	exporter   Exporter
	sink       storage.Sink
	opts       Options
	logger     *utils.Logger
}

// New creates a Pipeline. exporter may be nil to skip the CSV export.
func New(normalizer *services.Normalizer, exporter Exporter, sink storage.Sink, opts Options, logger *utils.Logger) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Pipeline{
		normalizer: normalizer,
		exporter:   exporter,
		sink:       sink,
		opts:       opts,
		logger:     logger,
	}
}

// Run processes one site. A page-level fetch failure or a persistence failure
// is returned; record-level failures are counted in the report.
func (p *Pipeline) Run(ctx context.Context, site Site) (*RunReport, error) {
	report := &RunReport{Source: site.Name, RunID: p.opts.NewRunID()}
	start := time.Now()
	p.logger.Info("[pipeline] %s: run %s starting", site.Name, report.RunID)

	results, err := site.Adapter.Fetch(ctx)
	if err != nil {
		return report, fmt.Errorf("pipeline: %s: fetch: %w", site.Name, err)
	}

	listings, failures := scraper.Partition(results)
	for _, f := range failures {
		p.logger.Warn("[pipeline] skipped %v", f)
	}
	report.Skipped = len(failures)
	p.logger.Info("[pipeline] %s: %d listings, %d skipped", site.Name, len(listings), len(failures))

	var supplements map[models.DetailLink]models.SupplementalFields
	if links := detailLinks(listings); site.Detail != nil && len(links) > 0 {
		resolver := scraper.NewDetailResolver(site.Name, site.DetailFetcher, site.Detail, p.opts.Resolver, p.logger)
		supplements = resolver.Resolve(ctx, links)
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline: %s: detail pages: %w", site.Name, err)
		}
		for _, sup := range supplements {
			if sup.EffectiveRent == nil && sup.AvailabilityRaw == nil {
				report.DetailFailures++
			}
		}
		p.logger.Info("[pipeline] %s: resolved %d detail pages (%d failed)", site.Name, len(supplements), report.DetailFailures)
	}

	retrievedAt := p.opts.Clock()
	units, valueErrs := p.normalizer.WithRunID(report.RunID).NormalizeDetailed(listings, supplements, site.Name, retrievedAt)
	for _, err := range valueErrs {
		p.logger.Debug("[pipeline] %v", err)
	}
	report.Units = units

	if p.exporter != nil {
		path, err := p.exporter.Export(site.Name, retrievedAt, units)
		if err != nil {
			p.logger.Error("[pipeline] %s: export failed: %v", site.Name, err)
		} else {
			report.ExportPath = path
			p.logger.Info("[pipeline] %s: exported %d units to %s", site.Name, len(units), path)
		}
	}

	if err := p.sink.Persist(ctx, units); err != nil {
		return report, fmt.Errorf("pipeline: %s: %w", site.Name, err)
	}

	p.logger.Info("[pipeline] %s: run %s done in %v (%d units)",
		site.Name, report.RunID, time.Since(start).Round(time.Millisecond), len(units))
	return report, nil
}

// RunAll runs sites one after another. A failing site does not stop the
// others; every failure is joined into the returned error.
func (p *Pipeline) RunAll(ctx context.Context, sites []Site) ([]*RunReport, error) {
	reports := make([]*RunReport, 0, len(sites))
	var errs []error
	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: %s: %w", site.Name, err))
			break
		}
		report, err := p.Run(ctx, site)
		if err != nil {
			p.logger.Error("[pipeline] %v", err)
			report.Err = err
			errs = append(errs, err)
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func detailLinks(listings []models.RawListing) []models.DetailLink {
	var links []models.DetailLink
	for _, l := range listings {
		if l.Link != "" {
			links = append(links, l.Link)
		}
	}
	return links
}
