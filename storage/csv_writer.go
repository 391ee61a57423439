package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"apartment-tracker/models"
)

var csvHeader = []string{
	"run_id", "apartment", "plan", "unit", "bedrooms", "beds", "baths", "sqft", "rent", "availability", "retrieved",
}

// slugRegexp matches runs of characters not allowed in export file names
var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// CSVExporter appends each batch to <dir>/<source-slug>_<YYYY-MM-DD>.csv.
// It is safe for concurrent use.
type CSVExporter struct {
	mu  sync.Mutex
	dir string
}

// NewCSVExporter creates an exporter writing under dir. The directory is
// created on first export.
func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{dir: dir}
}

// Path returns the export file for source on the date of retrievedAt.
func (c *CSVExporter) Path(source string, retrievedAt time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.csv", Slug(source), retrievedAt.Format("2006-01-02")))
}

// Export appends units to the source's file for the day, writing the header
// when the file is new.
func (c *CSVExporter) Export(source string, retrievedAt time.Time, units []models.CanonicalUnit) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("csv: create output dir: %w", err)
	}

	path := c.Path(source, retrievedAt)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("csv: open file %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return "", fmt.Errorf("csv: write header: %w", err)
		}
	}

	for _, u := range units {
		if err := w.Write(csvRow(u)); err != nil {
			return "", fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("csv: flush: %w", err)
	}
	return path, nil
}

func csvRow(u models.CanonicalUnit) []string {
	availability := ""
	if u.Availability != nil {
		availability = u.Availability.Format("2006-01-02")
	}
	return []string{
		u.RunID,
		u.Apartment,
		u.Plan,
		u.Unit,
		u.BedroomsLabel,
		formatFloat(u.Beds),
		formatFloat(u.Baths),
		formatFloat(u.Sqft),
		formatFloat(u.Rent),
		availability,
		u.RetrievedAt.Format(time.RFC3339),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Slug lower-cases name and joins its alphanumeric runs with underscores:
// "NEMA Chicago" becomes "nema_chicago".
func Slug(name string) string {
	return strings.Trim(slugRegexp.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
