package services

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"apartment-tracker/models"
)

// ErrParseValue marks a field string that could not be converted to its typed
// form. The field is emitted as absent.
var ErrParseValue = errors.New("unparseable value")

var (
	// numberRegexp captures the first decimal number once separators are removed
	numberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// bedroomUnitRegexp trims the unit word trailing a bedroom count
	bedroomUnitRegexp = regexp.MustCompile(`(?i)\s*(bedrooms?|beds?|br)\s*$`)
)

// Rules is the per-source rule table used to canonicalize raw field strings.
type Rules struct {
	// Prefixes lists the label prefixes stripped from each field key.
	Prefixes    map[string][]string
	StudioWords []string
	DenWords    []string
	NowWords    []string
	DateLayouts []string
	// PreferDetailAvailability uses the detail page's date when it parses.
	PreferDetailAvailability bool
}

// DefaultRules covers the label variants seen across the tracked sites.
var DefaultRules = Rules{
	Prefixes: map[string][]string{
		models.FieldUnit:         {"Apt #:", "Apt#:", "Apartment: #", "Apartment:", "Unit:", "Unit", "#"},
		models.FieldPlan:         {"Floor Plan:", "Plan:"},
		models.FieldBedrooms:     {"Beds:", "Bedrooms:", "Bed:"},
		models.FieldBaths:        {"Baths:", "Bathrooms:", "Bath:"},
		models.FieldSqft:         {"Size:", "Sq. Ft.:", "SQFT:", "Sq Ft:"},
		models.FieldRent:         {"Price:", "Starting at:", "Rent:"},
		models.FieldAvailability: {"Available:", "Date Available:", "Available"},
	},
	StudioWords: []string{"studio", "convertible"},
	NowWords:    []string{"now", "immediate"},
	DateLayouts: []string{
		"1/2/2006",
		"01/02/2006",
		"2006-01-02",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan. 2, 2006",
		"1/2/06",
		"Jan 2",
		"January 2",
		"Jan. 2",
		"1/2",
	},
}

// WithDetailAvailability returns a copy of r with PreferDetailAvailability
// set to prefer.
func (r Rules) WithDetailAvailability(prefer bool) Rules {
	r.PreferDetailAvailability = prefer
	return r
}

// WithDen returns a copy of r that counts labels naming a den as 1.5 beds.
func (r Rules) WithDen() Rules {
	r.DenWords = []string{"den"}
	return r
}

// Normalizer maps raw listings onto CanonicalUnit. It performs no I/O.
type Normalizer struct {
	rules map[string]Rules
	runID string
}

// NewNormalizer creates a Normalizer with rules keyed by source name.
func NewNormalizer(rules map[string]Rules) *Normalizer {
	table := make(map[string]Rules, len(rules))
	for k, v := range rules {
		table[k] = v
	}
	return &Normalizer{rules: table}
}

// WithRunID returns a Normalizer whose units carry runID.
func (n *Normalizer) WithRunID(runID string) *Normalizer {
	return &Normalizer{rules: n.rules, runID: runID}
}

// RulesFor returns the rule table for source, or DefaultRules.
func (n *Normalizer) RulesFor(source string) Rules {
	if r, ok := n.rules[source]; ok {
		return r
	}
	return DefaultRules
}

// Normalize converts every listing into a CanonicalUnit, in order. Fields
// that are missing or fail to parse are left absent; no listing is dropped.
func (n *Normalizer) Normalize(listings []models.RawListing, supplements map[models.DetailLink]models.SupplementalFields, source string, retrievedAt time.Time) []models.CanonicalUnit {
	units, _ := n.NormalizeDetailed(listings, supplements, source, retrievedAt)
	return units
}

// NormalizeDetailed is Normalize that also returns the value errors behind
// each absent field. Every error wraps ErrParseValue.
func (n *Normalizer) NormalizeDetailed(listings []models.RawListing, supplements map[models.DetailLink]models.SupplementalFields, source string, retrievedAt time.Time) ([]models.CanonicalUnit, []error) {
	rules := n.RulesFor(source)
	units := make([]models.CanonicalUnit, 0, len(listings))
	var errs []error

	for i, l := range listings {
		var sup models.SupplementalFields
		if l.Link != "" {
			sup = supplements[l.Link]
		}
		u, uerrs := rules.normalizeOne(l.Record, sup, retrievedAt)
		u.RunID = n.runID
		u.Apartment = source
		units = append(units, u)
		for _, err := range uerrs {
			errs = append(errs, fmt.Errorf("%s: record %d (unit %q): %w", source, i, u.Unit, err))
		}
	}
	return units, errs
}

func (r Rules) normalizeOne(rec models.RawRecord, sup models.SupplementalFields, retrievedAt time.Time) (models.CanonicalUnit, []error) {
	var errs []error
	u := models.CanonicalUnit{RetrievedAt: retrievedAt}

	u.Unit = r.field(rec, models.FieldUnit)
	u.Plan = r.field(rec, models.FieldPlan)

	bedrooms := r.field(rec, models.FieldBedrooms)
	if bedrooms == "" {
		if v, ok := rec.Get(models.FieldBeds); ok {
			bedrooms = r.strip(models.FieldBedrooms, v)
		}
	}
	if bedrooms != "" {
		u.BedroomsLabel = strings.TrimSpace(bedroomUnitRegexp.ReplaceAllString(bedrooms, ""))
		if u.BedroomsLabel == "" {
			u.BedroomsLabel = bedrooms
		}
		beds, err := r.Beds(bedrooms)
		if err != nil {
			errs = append(errs, fmt.Errorf("bedrooms: %w", err))
		}
		u.Beds = beds
	}

	u.Baths = r.number(rec, models.FieldBaths, &errs)
	u.Sqft = r.number(rec, models.FieldSqft, &errs)

	if sup.EffectiveRent != nil {
		rent, err := ParseNumber(*sup.EffectiveRent)
		if err != nil {
			errs = append(errs, fmt.Errorf("effective rent: %w", err))
		}
		u.Rent = rent
	}
	if u.Rent == nil {
		u.Rent = r.number(rec, models.FieldRent, &errs)
	}

	if r.PreferDetailAvailability && sup.AvailabilityRaw != nil {
		d, err := r.Availability(*sup.AvailabilityRaw, retrievedAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("detail availability: %w", err))
		}
		u.Availability = d
	}
	if u.Availability == nil {
		if raw := r.field(rec, models.FieldAvailability); raw != "" {
			d, err := r.Availability(raw, retrievedAt)
			if err != nil {
				errs = append(errs, fmt.Errorf("availability: %w", err))
			}
			u.Availability = d
		}
	}

	return u, errs
}

func (r Rules) field(rec models.RawRecord, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	return r.strip(key, v)
}

func (r Rules) number(rec models.RawRecord, key string, errs *[]error) *float64 {
	v := r.field(rec, key)
	if v == "" {
		return nil
	}
	n, err := ParseNumber(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
	}
	return n
}

// strip removes the field's label prefixes, case-insensitively and
// repeatedly, longest first.
func (r Rules) strip(key, value string) string {
	prefixes := append([]string(nil), r.Prefixes[key]...)
	sort.SliceStable(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	value = strings.TrimSpace(value)
	for {
		stripped := false
		for _, p := range prefixes {
			if p != "" && len(value) >= len(p) && strings.EqualFold(value[:len(p)], p) {
				value = strings.TrimSpace(value[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			return value
		}
	}
}

// Beds infers the bedroom count from a label: a studio word anywhere gives 0,
// a bare "Den" label gives 1.5, as does a den word inside a longer label when
// the rules have den words; anything else is parsed as a number.
func (r Rules) Beds(label string) (*float64, error) {
	lower := strings.ToLower(strings.TrimSpace(label))
	for _, w := range r.StudioWords {
		if strings.Contains(lower, w) {
			return ptr(0), nil
		}
	}
	if lower == "den" {
		return ptr(1.5), nil
	}
	for _, w := range r.DenWords {
		if containsWord(lower, w) {
			return ptr(1.5), nil
		}
	}
	return ParseNumber(label)
}

// Availability resolves a date string. Now words give the date of
// retrievedAt; year-less dates take retrievedAt's year, rolling into the next
// year when that would be more than six months in the past.
func (r Rules) Availability(raw string, retrievedAt time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(r.strip(models.FieldAvailability, raw))
	if raw == "" {
		return nil, nil
	}
	lower := strings.ToLower(raw)
	for _, w := range r.NowWords {
		if hasWordPrefix(lower, w) {
			d := dateOf(retrievedAt)
			return &d, nil
		}
	}

	loc := retrievedAt.Location()
	for _, layout := range r.DateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "06") {
			t = time.Date(retrievedAt.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
			if t.Before(dateOf(retrievedAt).AddDate(0, -6, 0)) {
				t = t.AddDate(1, 0, 0)
			}
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%w: date %q", ErrParseValue, raw)
}

// ParseNumber drops thousands separators and reads the first number in s,
// so currency symbols and unit suffixes are ignored.
func ParseNumber(s string) (*float64, error) {
	match := numberRegexp.FindString(strings.ReplaceAll(s, ",", ""))
	if match == "" {
		return nil, fmt.Errorf("%w: number %q", ErrParseValue, s)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %q: %v", ErrParseValue, s, err)
	}
	return &v, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}

func containsWord(s, word string) bool {
	for _, f := range words(s) {
		if f == word {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether some word of s starts with prefix, so "now"
// matches "Now!" and "immediate" matches "Immediately" but "Unknown" matches
// neither.
func hasWordPrefix(s, prefix string) bool {
	for _, f := range words(s) {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

func ptr(v float64) *float64 { return &v }
