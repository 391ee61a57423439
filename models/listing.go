package models

import "time"

// Canonical field keys used in a RawRecord.
const (
	FieldUnit         = "unit"
	FieldPlan         = "plan"
	FieldBedrooms     = "bedrooms"
	FieldBaths        = "baths"
	FieldSqft         = "sqft"
	FieldRent         = "rent"
	FieldAvailability = "availability"

	// FieldBeds is accepted as an alias of FieldBedrooms.
	FieldBeds = "beds"
)

// RawRecord holds the site-native strings scraped for one unit, before any
// normalization. Missing keys are legal and mean the source did not show the
// field.
type RawRecord map[string]string

// Get returns the value stored under key and whether it was present.
func (r RawRecord) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

// Set stores value under key, skipping empty strings so that absent fields
// stay absent.
func (r RawRecord) Set(key, value string) {
	if value == "" {
		return
	}
	r[key] = value
}

// DetailLink references a secondary page with lease-term pricing for a unit.
// The zero value means the unit has no detail page.
type DetailLink string

// RawListing pairs a RawRecord with its optional DetailLink.
type RawListing struct {
	Record RawRecord
	Link   DetailLink
}

// SupplementalFields are the values read from a unit's detail page.
// A nil pointer means the value could not be retrieved.
type SupplementalFields struct {
	EffectiveRent   *string
	AvailabilityRaw *string
}

// CanonicalUnit is the normalized, persisted record of one unit as seen in
// one retrieval snapshot.
type CanonicalUnit struct {
	RunID         string
	Apartment     string
	Plan          string
	Unit          string
	BedroomsLabel string
	Beds          *float64
	Baths         *float64
	Sqft          *float64
	Rent          *float64
	Availability  *time.Time
	RetrievedAt   time.Time
}

// RentReport holds summary statistics over one source's batch.
type RentReport struct {
	Apartment      string
	TotalUnits     int
	PricedUnits    int
	AverageRent    float64
	MinRent        float64
	MaxRent        float64
	AvgRentPerSqft float64
	Cheapest       *CanonicalUnit
	AvailableNow   int
	UnitsByBeds    map[string]int
}
