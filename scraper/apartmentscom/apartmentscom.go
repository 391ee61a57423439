// Package apartmentscom reads a property page on apartments.com. Unit data is
// carried in data-* attributes of each unit row.
package apartmentscom

import (
	"context"
	"fmt"
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
	gridSelector = "div[data-tab-content-id='all']"
	unitSelector = ".hasUnitGrid li.unitContainer"
)

var Rules = services.DefaultRules

type Adapter struct {
	scraper.Base
}

func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) *Adapter {
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger)}
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	page, grid, err := a.Open(ctx, a.Source.URL, gridSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	units := grid.Find(unitSelector)
	a.Logger.Info("[apartmentscom] Found %d units at %s", units.Length(), a.Name())

	results := make([]scraper.Result, 0, units.Length())
	units.Each(func(i int, u *goquery.Selection) {
		results = append(results, a.unit(i, u))
	})
	return results, nil
}

func (a *Adapter) unit(i int, u *goquery.Selection) scraper.Result {
	num := u.AttrOr("data-unit", "")
	if num == "" {
		return a.Skip(fmt.Sprintf("unit %d", i), "no data-unit attribute")
	}

	rec := models.RawRecord{}
	rec.Set(models.FieldUnit, num)
	rec.Set(models.FieldPlan, u.AttrOr("data-model", ""))
	rec.Set(models.FieldRent, u.AttrOr("data-maxrent", ""))
	rec.Set(models.FieldBedrooms, u.AttrOr("data-beds", ""))
	rec.Set(models.FieldBaths, u.AttrOr("data-baths", ""))
	rec.Set(models.FieldSqft, scraper.CleanText(u.Find("div.sqftColumn span:nth-of-type(2)").First().Text()))

	// the availability span holds a hidden label line before the date
	if lines := scraper.TextLines(u.Find("span.dateAvailable").First()); len(lines) > 0 {
		rec.Set(models.FieldAvailability, lines[len(lines)-1])
	}
	return scraper.OK(rec, "")
}
