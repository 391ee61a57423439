package willowbridge

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

const pageURL = "https://lineachicago.com/floor-plans/"

const fixture = `<html><body>
<table id="availability-table">
<thead><tr><th>Apt#</th><th>Plan</th><th>Beds</th><th>Baths</th><th>Size</th><th>Starting at</th><th>Available</th><th></th></tr></thead>
<tbody>
<tr>
  <td>Apt #: 1203</td><td>Floor Plan: A1</td><td>Beds: 1 Bed</td><td>Baths: 1 Bath</td>
  <td>Size: 712sf</td><td>Price: $2,145</td><td>Available: Now</td>
  <td><a href="/tour">Tour</a><a href="https://linea.securecafe.com/lease?unit=1203">LEASE</a></td>
</tr>
<tr>
  <td></td><td>Floor Plan: B2</td><td>Beds: 2 Bed</td><td>Baths: 2 Bath</td>
  <td>Size: 1,104sf</td><td>Price: $3,010</td><td>Available: 8/1/2024</td><td></td>
</tr>
<tr>
  <td>Apt #: 2210</td><td>Floor Plan: S</td><td>Beds: Studio</td><td>Baths: 1 Bath</td>
  <td>Size: 498sf</td><td>Price: $1,795</td><td>Available: 9/15/2024</td><td></td>
</tr>
</tbody></table></body></html>`

func newAdapter(t *testing.T, detail bool, pages map[string]string) *Adapter {
	t.Helper()
	src := config.Source{Name: "LINEA", Family: config.FamilyWillowBridge, URL: pageURL, Detail: detail}
	return New(src, fetchertest.New(pages), time.Second, utils.Discard())
}

func TestFetchParsesTable(t *testing.T) {
	a := newAdapter(t, true, map[string]string{pageURL: fixture})

	results, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	listings, failures := scraper.Partition(results)
	require.Len(t, listings, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "row 1", failures[0].Ref)

	first := listings[0]
	assert.Equal(t, "Apt #: 1203", first.Record[models.FieldUnit])
	assert.Equal(t, "Beds: 1 Bed", first.Record[models.FieldBedrooms])
	assert.Equal(t, "Price: $2,145", first.Record[models.FieldRent])
	assert.Equal(t, models.DetailLink("https://linea.securecafe.com/lease?unit=1203"), first.Link)
	assert.Equal(t, models.DetailLink(""), listings[1].Link)
}

func TestFetchWithoutDetailDropsLinks(t *testing.T) {
	a := newAdapter(t, false, map[string]string{pageURL: fixture})

	results, err := a.Fetch(context.Background())
	require.NoError(t, err)
	for _, r := range results {
		assert.Empty(t, r.Listing.Link)
	}
}

func TestFetchMissingTableIsPageLevel(t *testing.T) {
	a := newAdapter(t, false, map[string]string{pageURL: `<html><body><p>Maintenance</p></body></html>`})

	results, err := a.Fetch(context.Background())
	assert.ErrorIs(t, err, fetcher.ErrElementNotFound)
	assert.Nil(t, results)
}

func TestFetchNetworkError(t *testing.T) {
	a := newAdapter(t, false, map[string]string{})

	_, err := a.Fetch(context.Background())
	assert.ErrorIs(t, err, fetcher.ErrNetwork)
	assert.Contains(t, err.Error(), "LINEA")
}
