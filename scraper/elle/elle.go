// Package elle reads sites on the ELLE template: a floor-plan index whose
// cards link to one page per plan, each holding that plan's unit table.
package elle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
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

const (
	cardSelector    = "#floorplans-container .fp-container"
	sectionSelector = ".floorplan-section"
	tableSelector   = ".table-responsive"
)

var Rules = services.DefaultRules.WithDetailAvailability(true)

var Detail = scraper.LeaseTermExtractor

type Adapter struct {
	scraper.Base
}

func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) *Adapter {
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger)}
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	links, err := a.planLinks(ctx)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("[elle] Number of floor plan links for %s: %d", a.Name(), len(links))

	var results []scraper.Result
	var errs []error
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		res, err := a.planPage(ctx, link)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%s: %w", a.Name(), err)
			}
			errs = append(errs, err)
			results = append(results, a.Skip("floor plan page "+link, "%v", err))
			continue
		}
		results = append(results, res...)
	}
	if len(links) > 0 && len(errs) == len(links) {
		return nil, fmt.Errorf("%s: all %d floor plan pages failed: %w", a.Name(), len(links), errors.Join(errs...))
	}
	return results, nil
}

// planLinks reads the index page and returns each card's plan-page link once.
// Cards link elsewhere too (tours, applications); only the site's own
// /floorplans/ pages are kept.
func (a *Adapter) planLinks(ctx context.Context) ([]string, error) {
	page, cards, err := a.Open(ctx, a.Source.URL, cardSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	a.Logger.Info("[elle] There are %d floor plans for %s", cards.Length(), a.Name())

	seen := utils.NewLinkSet()
	cards.Each(func(_ int, card *goquery.Selection) {
		anchors := card.Find(".card-body a[href]")
		if anchors.Length() < 2 {
			return
		}
		href := fetcher.ResolveURL(page.URL(), anchors.Eq(anchors.Length()-2).AttrOr("href", ""))
		if !isPlanPage(page.URL(), href) {
			a.Logger.Debug("[elle] %s: ignoring card link %s", a.Name(), href)
			return
		}
		seen.Add(href)
	})
	return seen.Links(), nil
}

func (a *Adapter) planPage(ctx context.Context, link string) ([]scraper.Result, error) {
	page, section, err := a.Open(ctx, link, sectionSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()
	section = section.First()

	plan := scraper.CleanText(section.Find("h2").First().Text())
	spans := section.Find("span")
	if plan == "" || spans.Length() < 2 {
		return nil, fmt.Errorf("%w: plan header incomplete", scraper.ErrStructuralParse)
	}
	shared := models.RawRecord{}
	shared.Set(models.FieldPlan, plan)
	shared.Set(models.FieldBedrooms, scraper.CleanText(spans.Eq(0).Text()))
	shared.Set(models.FieldBaths, scraper.CleanText(spans.Eq(1).Text()))

	_, rows, err := scraper.ParseTable(section.Find(tableSelector).First(), page.URL())
	if err != nil {
		return nil, err
	}

	ref := "floor plan " + plan
	results := make([]scraper.Result, 0, len(rows))
	for _, row := range rows {
		rec := row.Record(scraper.DefaultColumns)
		if _, ok := rec.Get(models.FieldUnit); !ok {
			results = append(results, a.Skip(fmt.Sprintf("%s row %d", ref, row.Index), "no unit number"))
			continue
		}
		for k, v := range shared {
			rec.Set(k, v)
		}
		results = append(results, scraper.OK(rec, a.Link(row.LastLink())))
	}
	return results, nil
}

func isPlanPage(index, href string) bool {
	base, err := url.Parse(index)
	if err != nil {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, base.Host) && strings.Contains(u.Path, "/floorplans/")
}
