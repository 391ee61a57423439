// Package floorplan reads sites that group availability tables under
// floor-plan headers. The header layout differs per site template.
package floorplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/models"
	"apartment-tracker/scraper"
	"apartment-tracker/services"
	"apartment-tracker/utils"
)

// Supported header layouts.
const (
	LayoutLive1140 = "live1140"
	LayoutReed     = "reed"
)

// ErrUnknownLayout is returned by New for a layout this package cannot read.
var ErrUnknownLayout = errors.New("unknown floor plan layout")

// Layout describes where a site keeps its sections, their shared fields and
// their unit tables.
type Layout struct {
	Section string
	Table   string
	// Header reads the fields every unit in the section inherits.
	Header func(section *goquery.Selection) (models.RawRecord, error)
}

var layouts = map[string]Layout{
	LayoutLive1140: {Section: ".floorplan-section", Table: "table", Header: live1140Header},
	LayoutReed:     {Section: "div.availability-mdl", Table: ".availability-mdl__table", Header: reedHeader},
}

// Rules per layout. Reed's lease page defaults its move-in date to today, so
// only its rent is used.
var Rules = map[string]services.Rules{
	LayoutLive1140: services.DefaultRules.WithDetailAvailability(true),
	LayoutReed:     services.DefaultRules,
}

var Detail = scraper.LeaseTermExtractor

type Adapter struct {
	scraper.Base
	layout Layout
}

func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) (*Adapter, error) {
	layout, ok := layouts[src.Layout]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", src.Name, ErrUnknownLayout, src.Layout)
	}
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger), layout: layout}, nil
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	page, sections, err := a.Open(ctx, a.Source.URL, a.layout.Section)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	a.Logger.Info("[floorplan] Total floor plans at %s: %d", a.Name(), sections.Length())

	var results []scraper.Result
	sections.Each(func(i int, fp *goquery.Selection) {
		results = append(results, a.section(i, fp, page.URL())...)
	})
	return results, nil
}

func (a *Adapter) section(i int, fp *goquery.Selection, baseURL string) []scraper.Result {
	ref := fmt.Sprintf("floor plan %d", i)

	shared, err := a.layout.Header(fp)
	if err != nil {
		return []scraper.Result{a.Skip(ref, "header: %v", err)}
	}
	if plan, ok := shared.Get(models.FieldPlan); ok {
		ref = "floor plan " + plan
	}

	_, rows, err := scraper.ParseTable(fp.Find(a.layout.Table).First(), baseURL)
	if err != nil {
		return []scraper.Result{a.Skip(ref, "%v", err)}
	}
	a.Logger.Debug("[floorplan] %s: %d units", ref, len(rows))

	results := make([]scraper.Result, 0, len(rows))
	for _, row := range rows {
		rec := row.Record(scraper.DefaultColumns)
		if _, ok := rec.Get(models.FieldUnit); !ok {
			results = append(results, a.Skip(fmt.Sprintf("%s row %d", ref, row.Index), "no unit number"))
			continue
		}
		for k, v := range shared {
			if _, ok := rec.Get(k); !ok {
				rec.Set(k, v)
			}
		}
		results = append(results, scraper.OK(rec, a.Link(row.LastLink())))
	}
	return results
}

// live1140Header reads a .col-lg-8 block whose first line is the plan and
// whose last line is "1 Bedroom | 1 Bathroom".
func live1140Header(fp *goquery.Selection) (models.RawRecord, error) {
	lines := scraper.TextLines(fp.Find(".col-lg-8").First())
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: plan header has %d lines", scraper.ErrStructuralParse, len(lines))
	}
	bedrooms, baths, ok := strings.Cut(lines[len(lines)-1], "|")
	if !ok {
		return nil, fmt.Errorf("%w: rooms line %q", scraper.ErrStructuralParse, lines[len(lines)-1])
	}
	rec := models.RawRecord{}
	rec.Set(models.FieldPlan, lines[0])
	rec.Set(models.FieldBedrooms, strings.TrimSpace(bedrooms))
	rec.Set(models.FieldBaths, strings.TrimSpace(baths))
	return rec, nil
}

// reedHeader reads .availability-mdl__header: an h5 plan and <p> lines for
// bedrooms, baths and size.
func reedHeader(fp *goquery.Selection) (models.RawRecord, error) {
	header := fp.Find(".availability-mdl__header").First()
	plan := scraper.CleanText(header.Find("h5").First().Text())
	if plan == "" {
		return nil, fmt.Errorf("%w: no plan title", scraper.ErrStructuralParse)
	}
	ps := header.Find("p")
	if ps.Length() < 2 {
		return nil, fmt.Errorf("%w: expected bed and bath lines, found %d", scraper.ErrStructuralParse, ps.Length())
	}
	rec := models.RawRecord{}
	rec.Set(models.FieldPlan, plan)
	rec.Set(models.FieldBedrooms, scraper.CleanText(ps.Eq(0).Text()))
	rec.Set(models.FieldBaths, scraper.CleanText(ps.Eq(1).Text()))
	if ps.Length() > 2 {
		rec.Set(models.FieldSqft, scraper.CleanText(ps.Eq(2).Text()))
	}
	return rec, nil
}
