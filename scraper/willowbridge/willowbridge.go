// Package willowbridge reads Willow Bridge property sites (1000M, LINEA),
// which list every available unit in one #availability-table.
package willowbridge

import (
	"context"
	"fmt"
	"time"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/models"
	"apartment-tracker/scraper"
	"apartment-tracker/services"
	"apartment-tracker/utils"
)

const tableSelector = "#availability-table"

// Rules normalizes Willow Bridge rows. The lease page's move-in date is the
// one a 12-month rent is quoted for.
var Rules = services.DefaultRules.WithDetailAvailability(true)

// Detail reads the RentCafe lease page behind each row's LEASE button.
var Detail = scraper.LeaseTermExtractor

type Adapter struct {
	scraper.Base
}

func New(src config.Source, f fetcher.Fetcher, timeout time.Duration, logger *utils.Logger) *Adapter {
	return &Adapter{Base: scraper.NewBase(src, f, timeout, logger)}
}

func (a *Adapter) Fetch(ctx context.Context) ([]scraper.Result, error) {
	page, table, err := a.Open(ctx, a.Source.URL, tableSelector)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	_, rows, err := scraper.ParseTable(table, page.URL())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	a.Logger.Info("[willowbridge] There are %d available units at %s", len(rows), a.Name())

	results := make([]scraper.Result, 0, len(rows))
	for _, row := range rows {
		rec := row.Record(scraper.DefaultColumns)
		if _, ok := rec.Get(models.FieldUnit); !ok {
			results = append(results, a.Skip(fmt.Sprintf("row %d", row.Index), "no unit number"))
			continue
		}
		results = append(results, scraper.OK(rec, a.Link(row.LastLink())))
	}
	return results, nil
}
