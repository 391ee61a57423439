// Package rentcafe reads RentCafe-built sites (Eleven 30), where units are
// grouped under floor-plan sections and each unit links to a pricing card.
package rentcafe

import (
	"context"
	"fmt"
	"regexp"
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
	sectionSelector = ".units-list"
	cardSelector    = "#CSFlipCard"
	// first price span of the 12-month card
	cardRentSelector = "#CSFlipCard > div > div:nth-of-type(1) > div:nth-of-type(2) > div:nth-of-type(1) > div > span:nth-of-type(1)"
)

// roomsRegexp captures the "(1BR/1BA)" or "(Studio)" suffix of a plan title
var roomsRegexp = regexp.MustCompile(`\(([^()]*)\)\s*$`)

var Rules = services.DefaultRules

// FlipCardExtractor reads the 12-month rent from a unit's pricing card.
var FlipCardExtractor scraper.DetailExtractor = scraper.DetailExtractorFunc(extractFlipCard)

func extractFlipCard(ctx context.Context, page fetcher.Page, timeout time.Duration) (models.SupplementalFields, error) {
	var sup models.SupplementalFields
	if _, err := page.WaitFor(ctx, cardSelector, timeout); err != nil {
		return sup, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return sup, err
	}
	rent := scraper.CleanText(doc.Find(cardRentSelector).First().Text())
	if rent == "" {
		return sup, fmt.Errorf("%w: pricing card has no rent", scraper.ErrStructuralParse)
	}
	sup.EffectiveRent = &rent
	return sup, nil
}

type Adapter struct {
	scraper.Base
}

func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) *Adapter {
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger)}
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	page, sections, err := a.Open(ctx, a.Source.URL, sectionSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	a.Logger.Info("[rentcafe] There are %d floor plans at %s", sections.Length(), a.Name())

	var results []scraper.Result
	sections.Each(func(i int, fp *goquery.Selection) {
		results = append(results, a.section(i, fp, page.URL())...)
	})
	return results, nil
}

func (a *Adapter) section(i int, fp *goquery.Selection, baseURL string) []scraper.Result {
	ref := fmt.Sprintf("floor plan %d", i)
	title := scraper.CleanText(fp.Find("h3").First().Text())
	if title == "" {
		return []scraper.Result{a.Skip(ref, "no plan title")}
	}
	ref = "floor plan " + title
	plan, bedrooms, baths := splitPlanTitle(title)

	units := fp.Find(".table-body .unit-item")
	a.Logger.Debug("[rentcafe] There are %d units available for %s", units.Length(), title)

	results := make([]scraper.Result, 0, units.Length())
	units.Each(func(j int, unit *goquery.Selection) {
		cols := unit.Find(".col-2")
		if cols.Length() < 4 {
			results = append(results, a.Skip(fmt.Sprintf("%s unit %d", ref, j), "expected 4 columns, found %d", cols.Length()))
			return
		}
		num := scraper.CleanText(cols.Eq(0).Find("span").First().Text())
		if num == "" {
			results = append(results, a.Skip(fmt.Sprintf("%s unit %d", ref, j), "no unit number"))
			return
		}

		rec := models.RawRecord{}
		rec.Set(models.FieldPlan, plan)
		rec.Set(models.FieldBedrooms, bedrooms)
		rec.Set(models.FieldBaths, baths)
		rec.Set(models.FieldUnit, num)
		rec.Set(models.FieldSqft, scraper.CleanText(cols.Eq(1).Text()))
		rec.Set(models.FieldRent, scraper.CleanText(cols.Eq(2).Text()))
		rec.Set(models.FieldAvailability, scraper.CleanText(cols.Eq(3).Text()))

		href := unit.Find("a[href]").Last().AttrOr("href", "")
		results = append(results, scraper.OK(rec, a.Link(fetcher.ResolveURL(baseURL, href))))
	})
	return results
}

// splitPlanTitle splits "A1 (1BR/1BA)" into plan, bedrooms and baths. Studio
// plans carry no bath count and have one bath.
func splitPlanTitle(title string) (plan, bedrooms, baths string) {
	m := roomsRegexp.FindStringSubmatchIndex(title)
	if m == nil {
		return title, "", ""
	}
	plan = strings.TrimSpace(title[:m[0]])
	rooms := strings.TrimSpace(title[m[2]:m[3]])
	if before, after, ok := strings.Cut(rooms, "/"); ok {
		return plan, strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if strings.EqualFold(rooms, "studio") {
		return plan, rooms, "1"
	}
	return plan, rooms, ""
}
