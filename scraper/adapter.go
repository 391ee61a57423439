// Package scraper holds the source-adapter contract shared by every site
// family, the HTML helpers they use, and the detail-page resolver.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"apartment-tracker/models"
)

// ErrStructuralParse marks a unit or floor-plan section whose markup could not
// be read. It is recovered by skipping that record.
var ErrStructuralParse = errors.New("structural parse error")

// ParseError describes one skipped record or section.
type ParseError struct {
	Source string
	Ref    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Ref, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrStructuralParse }

// Result is the outcome of extracting one record: a listing, or the reason
// it was skipped.
type Result struct {
	Listing models.RawListing
	Err     *ParseError
}

// OK wraps a successfully extracted listing.
func OK(record models.RawRecord, link models.DetailLink) Result {
	return Result{Listing: models.RawListing{Record: record, Link: link}}
}

// Skip records a structural failure for ref.
func Skip(source, ref, format string, args ...any) Result {
	return Result{Err: &ParseError{Source: source, Ref: ref, Reason: fmt.Sprintf(format, args...)}}
}

// Adapter reads one property website into raw listings. A returned error is
// page-level and ends the source run; per-record failures are carried in the
// results instead.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]Result, error)
}

// Partition splits results into listings and parse failures.
func Partition(results []Result) ([]models.RawListing, []*ParseError) {
	listings := make([]models.RawListing, 0, len(results))
	var failures []*ParseError
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, r.Err)
			continue
		}
		listings = append(listings, r.Listing)
	}
	return listings, failures
}
