package apartmentscom

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

const pageURL = "https://www.apartments.com/the-gateway-chicago-il/abc123/"

const fixture = `<html><body>
<div data-tab-content-id="all">
  <div class="pricingGridItem hasUnitGrid">
    <ul>
      <li class="unitContainer" data-model="A1" data-unit="1204" data-maxrent="2310" data-beds="1" data-baths="1">
        <div class="sqftColumn"><span class="screenReaderOnly">square feet</span><span>705</span></div>
        <span class="dateAvailable"><span class="screenReaderOnly">availibility</span><br>Aug 12</span>
      </li>
      <li class="unitContainer" data-model="S" data-beds="0" data-baths="1"></li>
      <li class="unitContainer" data-model="B2" data-unit="2301" data-maxrent="3150" data-beds="2" data-baths="2">
        <div class="sqftColumn"><span></span><span>1,080</span></div>
        <span class="dateAvailable">Now</span>
      </li>
    </ul>
  </div>
  <div class="pricingGridItem"><ul><li class="unitContainer" data-unit="9999"></li></ul></div>
</div>
</body></html>`

func TestFetchReadsDataAttributes(t *testing.T) {
	src := config.Source{Name: "The Gateway", Family: config.FamilyApartmentsCom, URL: pageURL}
	a := New(src, fetchertest.New(map[string]string{pageURL: fixture}), time.Second, utils.Discard())

	results, err := a.Fetch(context.Background())
	require.NoError(t, err)

	listings, failures := scraper.Partition(results)
	require.Len(t, listings, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "unit 1", failures[0].Ref)

	assert.Equal(t, models.RawRecord{
		models.FieldUnit:         "1204",
		models.FieldPlan:         "A1",
		models.FieldRent:         "2310",
		models.FieldBedrooms:     "1",
		models.FieldBaths:        "1",
		models.FieldSqft:         "705",
		models.FieldAvailability: "Aug 12",
	}, listings[0].Record)
	assert.Equal(t, "Now", listings[1].Record[models.FieldAvailability])
	assert.Equal(t, "1,080", listings[1].Record[models.FieldSqft])
}

func TestFetchMissingGridIsPageLevel(t *testing.T) {
	src := config.Source{Name: "The Gateway", Family: config.FamilyApartmentsCom, URL: pageURL}
	a := New(src, fetchertest.New(map[string]string{pageURL: `<html></html>`}), time.Second, utils.Discard())

	_, err := a.Fetch(context.Background())
	assert.ErrorIs(t, err, fetcher.ErrElementNotFound)
}
