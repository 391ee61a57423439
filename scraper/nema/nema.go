// Package nema reads NEMA Chicago's server-rendered availability list.
package nema

import (
	"context"
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

const itemSelector = ".availabilities-list__item"

var Rules = services.DefaultRules

type Adapter struct {
	scraper.Base
}

// New expects a fetcher for static pages; the list is in the initial HTML.
func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) *Adapter {
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger)}
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	page, items, err := a.Open(ctx, a.Source.URL, itemSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	a.Logger.Info("[nema] There are %d available units at %s", items.Length(), a.Name())

	results := make([]scraper.Result, 0, items.Length())
	items.Each(func(i int, item *goquery.Selection) {
		results = append(results, a.item(i, item))
	})
	return results, nil
}

func (a *Adapter) item(i int, item *goquery.Selection) scraper.Result {
	unit := cell(item, "cell--unit")
	if unit == "" {
		return a.Skip(fmt.Sprintf("item %d", i), "no unit cell")
	}

	rec := models.RawRecord{}
	rec.Set(models.FieldUnit, unit)
	if rooms := cell(item, "cell--bet"); rooms != "" {
		bedrooms, baths, _ := strings.Cut(rooms, "/")
		rec.Set(models.FieldBedrooms, strings.TrimSpace(bedrooms))
		rec.Set(models.FieldBaths, strings.TrimSpace(baths))
	}
	rec.Set(models.FieldSqft, cell(item, "cell--size"))
	rec.Set(models.FieldRent, cell(item, "cell--minRent"))
	rec.Set(models.FieldAvailability, cell(item, "cell--viewAvailability"))

	a.Logger.Debug("[nema] Unit: %s, Rooms: %s/%s, Sqft: %s, Rent: %s, Available: %s",
		rec[models.FieldUnit], rec[models.FieldBedrooms], rec[models.FieldBaths],
		rec[models.FieldSqft], rec[models.FieldRent], rec[models.FieldAvailability])
	return scraper.OK(rec, "")
}

func cell(item *goquery.Selection, class string) string {
	return scraper.CleanText(item.Find("div." + class).First().Text())
}
