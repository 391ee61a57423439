package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"apartment-tracker/models"
	"apartment-tracker/utils"
)

// InsightService summarizes a source's batch for the end-of-run report.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(apartment string, units []models.CanonicalUnit) *models.RentReport {
	report := &models.RentReport{
		Apartment:   apartment,
		UnitsByBeds: make(map[string]int),
	}

	if len(units) == 0 {
		return report
	}

	report.TotalUnits = len(units)

	var total, perSqftTotal float64
	var perSqftCount int

	for i := range units {
		u := &units[i]
		report.UnitsByBeds[bedsKey(u)]++

		if u.Availability != nil && !u.Availability.After(u.RetrievedAt) {
			report.AvailableNow++
		}

		if u.Rent == nil || *u.Rent <= 0 {
			continue
		}
		rent := *u.Rent
		if report.PricedUnits == 0 || rent < report.MinRent {
			report.MinRent = rent
			report.Cheapest = u
		}
		if rent > report.MaxRent {
			report.MaxRent = rent
		}
		report.PricedUnits++
		total += rent

		if u.Sqft != nil && *u.Sqft > 0 {
			perSqftTotal += rent / *u.Sqft
			perSqftCount++
		}
	}

	if report.PricedUnits > 0 {
		report.AverageRent = round2(total / float64(report.PricedUnits))
		report.MinRent = round2(report.MinRent)
		report.MaxRent = round2(report.MaxRent)
	}
	if perSqftCount > 0 {
		report.AvgRentPerSqft = round2(perSqftTotal / float64(perSqftCount))
	}

	s.logger.Debug("[insights] %s: %d units, %d priced", apartment, report.TotalUnits, report.PricedUnits)
	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.RentReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.RentReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏢 %s\033[0m\n", strings.ToUpper(r.Apartment))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Units listed      : \033[1m%d\033[0m\n", r.TotalUnits)
	fmt.Fprintf(w, "  Units with rent   : \033[1m%d\033[0m\n", r.PricedUnits)
	fmt.Fprintf(w, "  Available now     : \033[1m%d\033[0m\n", r.AvailableNow)
	fmt.Fprintln(w)

	// Rent Stats
	fmt.Fprintf(w, "\033[1;33m  Rent Statistics (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedUnits > 0 {
		fmt.Fprintf(w, "  Average rent  : \033[1;32m$%.2f\033[0m\n", r.AverageRent)
		fmt.Fprintf(w, "  Minimum rent  : \033[1;32m$%.2f\033[0m\n", r.MinRent)
		fmt.Fprintf(w, "  Maximum rent  : \033[1;32m$%.2f\033[0m\n", r.MaxRent)
		if r.AvgRentPerSqft > 0 {
			fmt.Fprintf(w, "  Rent per sqft : \033[1;32m$%.2f\033[0m\n", r.AvgRentPerSqft)
		}
	} else {
		fmt.Fprintf(w, "  No rent data available\n")
	}
	fmt.Fprintln(w)

	if r.Cheapest != nil {
		fmt.Fprintf(w, "\033[1;33m  Cheapest Unit\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Unit  : %s %s\n", r.Cheapest.Unit, planSuffix(r.Cheapest.Plan))
		fmt.Fprintf(w, "  Beds  : %s\n", bedsKey(r.Cheapest))
		fmt.Fprintf(w, "  Rent  : \033[1;32m$%.2f/month\033[0m\n", *r.Cheapest.Rent)
		fmt.Fprintln(w)
	}

	// Units by bedroom count
	fmt.Fprintf(w, "\033[1;33m  Units by Bedrooms\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.UnitsByBeds) == 0 {
		fmt.Fprintf(w, "  No units\n")
	} else {
		keys := make([]string, 0, len(r.UnitsByBeds))
		for k := range r.UnitsByBeds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			bar := strings.Repeat("█", r.UnitsByBeds[k])
			fmt.Fprintf(w, "  %-12s %s (%d)\n", truncate(k, 10), bar, r.UnitsByBeds[k])
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func bedsKey(u *models.CanonicalUnit) string {
	switch {
	case u.Beds == nil:
		return "unknown"
	case *u.Beds == 0:
		return "studio"
	default:
		return fmt.Sprintf("%g bed", *u.Beds)
	}
}

func planSuffix(plan string) string {
	if plan == "" {
		return ""
	}
	return "(" + plan + ")"
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
