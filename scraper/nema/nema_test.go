package nema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-tracker/config"
	"apartment-tracker/fetcher"
	"apartment-tracker/fetcher/fetchertest"
	"apartment-tracker/models"
	"apartment-tracker/scraper"
	"apartment-tracker/utils"
)

const pageURL = "https://www.rentnemachicago.com/availability#all"

const fixture = `<html><body><div class="availabilities-list">
<div class="availabilities-list__item">
  <div class="cell cell--unit">#4108</div><div class="cell cell--bet">1 Bed / 1 Bath</div>
  <div class="cell cell--size">742 SQ.Ft</div><div class="cell cell--minRent">$2,875/mo</div>
  <div class="cell cell--viewAvailability">IMMEDIATE</div>
</div>
<div class="availabilities-list__item">
  <div class="cell cell--bet">Studio / 1 Bath</div>
</div>
<div class="availabilities-list__item">
  <div class="cell cell--unit">#1210</div><div class="cell cell--bet">Studio</div>
  <div class="cell cell--minRent">$2,105/mo</div>
</div>
</div></body></html>`

func newAdapter(pages map[string]string) *Adapter {
	src := config.Source{Name: "NEMA Chicago", Family: config.FamilyNema, URL: pageURL}
	return New(src, fetchertest.New(pages), time.Second, utils.Discard())
}

func TestFetchReadsCells(t *testing.T) {
	results, err := newAdapter(map[string]string{pageURL: fixture}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	listings, failures := scraper.Partition(results)
	require.Len(t, listings, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "item 1", failures[0].Ref)

	assert.Equal(t, models.RawRecord{
		models.FieldUnit:         "#4108",
		models.FieldBedrooms:     "1 Bed",
		models.FieldBaths:        "1 Bath",
		models.FieldSqft:         "742 SQ.Ft",
		models.FieldRent:         "$2,875/mo",
		models.FieldAvailability: "IMMEDIATE",
	}, listings[0].Record)
	assert.Empty(t, listings[0].Link)

	assert.Equal(t, models.RawRecord{
		models.FieldUnit:     "#1210",
		models.FieldBedrooms: "Studio",
		models.FieldRent:     "$2,105/mo",
	}, listings[1].Record)
}

func TestFetchEmptyListIsPageLevel(t *testing.T) {
	_, err := newAdapter(map[string]string{pageURL: `<div class="availabilities-list"></div>`}).Fetch(context.Background())
	assert.ErrorIs(t, err, fetcher.ErrElementNotFound)
}
