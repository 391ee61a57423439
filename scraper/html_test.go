package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-tracker/models"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const availabilityTable = `<table id="availability-table">
<thead><tr><th>Apt #</th><th>Floor Plan</th><th>Bed</th><th>Bath</th><th>Sq. Ft.</th><th>Starting At</th><th>Available</th><th></th></tr></thead>
<tbody>
<tr><td>1203</td><td>A1</td><td>1</td><td>1</td><td>712</td><td>$2,145</td><td>Now</td><td><a href="/lease?unit=1203">Lease</a></td></tr>
<tr><td>1507</td><td>B2</td><td>2</td><td>2</td><td>1,104</td><td>$3,010</td><td>8/1/2024</td><td></td></tr>
</tbody></table>`

func TestParseTable(t *testing.T) {
	doc := mustDoc(t, availabilityTable)

	headers, rows, err := ParseTable(doc.Find("#availability-table"), "https://example.com/floorplans")
	require.NoError(t, err)

	assert.Equal(t, []string{"Apt #", "Floor Plan", "Bed", "Bath", "Sq. Ft.", "Starting At", "Available", "col_7"}, headers)
	require.Len(t, rows, 2)

	assert.Equal(t, "1203", rows[0].Cells["Apt #"])
	assert.Equal(t, "https://example.com/lease?unit=1203", rows[0].LastLink())
	assert.Equal(t, "", rows[1].LastLink())
	assert.Equal(t, 1, rows[1].Index)
}

func TestTableRowRecord(t *testing.T) {
	doc := mustDoc(t, availabilityTable)
	_, rows, err := ParseTable(doc.Find("table"), "")
	require.NoError(t, err)

	rec := rows[1].Record(DefaultColumns)
	assert.Equal(t, models.RawRecord{
		models.FieldUnit:         "1507",
		models.FieldPlan:         "B2",
		models.FieldBedrooms:     "2",
		models.FieldBaths:        "2",
		models.FieldSqft:         "1,104",
		models.FieldRent:         "$3,010",
		models.FieldAvailability: "8/1/2024",
	}, rec)
}

func TestParseTableHeaderFromFirstRow(t *testing.T) {
	doc := mustDoc(t, `<div id="wrap"><table>
<tr><th>Unit</th><th>Rent</th></tr>
<tr><td>301</td><td>$1,900</td></tr>
</table></div>`)

	headers, rows, err := ParseTable(doc.Find("#wrap"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit", "Rent"}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "$1,900", rows[0].Cells["Rent"])
}

func TestParseTableErrors(t *testing.T) {
	doc := mustDoc(t, `<div id="empty"></div><table id="nohead"><tr><td>1</td></tr></table>`)

	_, _, err := ParseTable(doc.Find("#missing"), "")
	assert.ErrorIs(t, err, ErrStructuralParse)

	_, _, err = ParseTable(doc.Find("#empty"), "")
	assert.ErrorIs(t, err, ErrStructuralParse)

	_, _, err = ParseTable(doc.Find("#nohead"), "")
	assert.ErrorIs(t, err, ErrStructuralParse)
}

func TestCleanText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Studio \n  ", "Studio"},
		{"1 Bed\t/ 1 Bath", "1 Bed / 1 Bath"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextLines(t *testing.T) {
	doc := mustDoc(t, `<div id="p"><div>12 Months</div><div><span>$2,150</span> /mo</div><script>var x=1;</script><p> </p></div>`)

	assert.Equal(t, []string{"12 Months", "$2,150 /mo"}, TextLines(doc.Find("#p")))
	assert.Empty(t, TextLines(doc.Find("#none")))
}

func TestPartition(t *testing.T) {
	results := []Result{
		OK(models.RawRecord{models.FieldUnit: "101"}, ""),
		Skip("Test", "unit 2", "missing %s", "rent"),
		OK(models.RawRecord{models.FieldUnit: "103"}, "https://example.com/d"),
	}

	listings, failures := Partition(results)
	require.Len(t, listings, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, models.DetailLink("https://example.com/d"), listings[1].Link)
	assert.ErrorIs(t, failures[0], ErrStructuralParse)
	assert.Equal(t, "Test: unit 2: missing rent", failures[0].Error())
}

func TestTableRowRecordLeftmostAliasWins(t *testing.T) {
	doc := mustDoc(t, `<table>
<thead><tr><th>Unit</th><th>Availability</th><th>Date Available</th></tr></thead>
<tr><td>1405</td><td>Available 8/1</td><td>8/3/2024</td></tr>
<tr><td>1406</td><td></td><td>8/9/2024</td></tr>
</table>`)
	_, rows, err := ParseTable(doc.Find("table"), "")
	require.NoError(t, err)

	assert.Equal(t, "Available 8/1", rows[0].Record(DefaultColumns)[models.FieldAvailability])
	assert.Equal(t, "8/9/2024", rows[1].Record(DefaultColumns)[models.FieldAvailability])
}
