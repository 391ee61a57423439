package scraper

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"apartment-tracker/fetcher"
	"apartment-tracker/models"
)

// DefaultColumns maps lower-cased table header text to canonical field keys.
var DefaultColumns = map[string]string{
	"apt#":           models.FieldUnit,
	"apt #":          models.FieldUnit,
	"apartment":      models.FieldUnit,
	"unit":           models.FieldUnit,
	"residence":      models.FieldUnit,
	"plan":           models.FieldPlan,
	"floor plan":     models.FieldPlan,
	"floorplan":      models.FieldPlan,
	"bed":            models.FieldBedrooms,
	"beds":           models.FieldBedrooms,
	"bedrooms":       models.FieldBedrooms,
	"bath":           models.FieldBaths,
	"baths":          models.FieldBaths,
	"bathrooms":      models.FieldBaths,
	"size":           models.FieldSqft,
	"sq. ft.":        models.FieldSqft,
	"sq ft":          models.FieldSqft,
	"sqft":           models.FieldSqft,
	"square feet":    models.FieldSqft,
	"starting at":    models.FieldRent,
	"rent":           models.FieldRent,
	"price":          models.FieldRent,
	"monthly rent":   models.FieldRent,
	"available":      models.FieldAvailability,
	"availability":   models.FieldAvailability,
	"date available": models.FieldAvailability,
	"move-in date":   models.FieldAvailability,
}

// TableRow is one body row of an HTML table keyed by header text.
type TableRow struct {
	Index   int
	Headers []string
	Cells   map[string]string
	// Links holds the resolved hrefs of anchors in the row, in document order.
	Links []string
}

// LastLink returns the row's last anchor href, or "".
func (r TableRow) LastLink() string {
	if len(r.Links) == 0 {
		return ""
	}
	return r.Links[len(r.Links)-1]
}

// Record maps the row's cells onto canonical keys using columns. Cells under
// unknown headers are dropped; when two headers map to one key the leftmost
// non-empty cell wins.
func (r TableRow) Record(columns map[string]string) models.RawRecord {
	rec := models.RawRecord{}
	for _, header := range r.Headers {
		key, ok := columns[headerKey(header)]
		if !ok {
			continue
		}
		if _, taken := rec.Get(key); !taken {
			rec.Set(key, r.Cells[header])
		}
	}
	return rec
}

// ParseTable reads a <table> into headers and rows. Header cells come from
// <thead> or from the first row holding <th>; blank headers are named
// col_<n>. Rows without <td> cells are ignored. Hrefs are resolved against
// baseURL.
func ParseTable(table *goquery.Selection, baseURL string) ([]string, []TableRow, error) {
	if table.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: no table", ErrStructuralParse)
	}
	if !table.Is("table") {
		table = table.Find("table").First()
		if table.Length() == 0 {
			return nil, nil, fmt.Errorf("%w: no table", ErrStructuralParse)
		}
	}

	headerRow := table.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = table.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("th").Length() > 0
		}).First()
	}
	if headerRow.Length() == 0 {
		return nil, nil, fmt.Errorf("%w: table has no header row", ErrStructuralParse)
	}

	var headers []string
	headerRow.Find("th, td").Each(func(i int, s *goquery.Selection) {
		h := CleanText(s.Text())
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		headers = append(headers, h)
	})

	var rows []TableRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.IsSelection(headerRow) {
			return
		}
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		row := TableRow{Index: len(rows), Headers: headers, Cells: make(map[string]string, cells.Length())}
		cells.Each(func(i int, td *goquery.Selection) {
			if i < len(headers) {
				row.Cells[headers[i]] = CleanText(td.Text())
			}
		})
		tr.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			row.Links = append(row.Links, fetcher.ResolveURL(baseURL, a.AttrOr("href", "")))
		})
		rows = append(rows, row)
	})

	return headers, rows, nil
}

func headerKey(h string) string {
	return strings.TrimSuffix(strings.ToLower(CleanText(h)), ":")
}

// CleanText strips leading/trailing whitespace and collapses internal whitespace.
func CleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

var blockTags = map[string]bool{
	"address": true, "article": true, "br": true, "dd": true, "div": true,
	"dl": true, "dt": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "li": true, "ol": true,
	"p": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// TextLines returns the visible text of sel split at block boundaries, one
// cleaned, non-empty entry per line, approximating a browser's innerText.
func TextLines(sel *goquery.Selection) []string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b)
	}
	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = CleanText(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}
