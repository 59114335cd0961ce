// Package display formats computed values for people: thousands separators
// and one decimal place. Values are rounded here and never fed back into a
// computation.
package display

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"echoair/internal/dashboard"
	"echoair/internal/rank"
)

// Amount renders v as "1,234.5".
func Amount(v float64) string {
	return humanize.FormatFloat("#,###.#", rank.Round1(v).InexactFloat64())
}

// Percent renders v as "66.7%".
func Percent(v float64) string {
	return rank.Round1(v).StringFixed(1) + "%"
}

// Count renders n with thousands separators.
func Count(n int) string { return humanize.Comma(int64(n)) }

// Summary is the four-line statistics block shown beside the selectors.
func Summary(r dashboard.Result) []string {
	sel := r.Selection
	return []string{
		fmt.Sprintf("Total Emissions for '%s' (%s): %s %s", r.Location, sel.Year, Amount(r.Stats.TotalEmissions), r.Unit),
		fmt.Sprintf("Total Reporting Facilities: %s", Count(r.Stats.TotalFacilities)),
		fmt.Sprintf("Total Emissions for the Top %d Facilities: %s %s", sel.TopN, Amount(r.Stats.TopEmissions), r.Unit),
		fmt.Sprintf("Proportion of Total Emissions from Top %d Facilities: %s", sel.TopN, Percent(r.Stats.ProportionFromTop)),
	}
}

// TableTitle is the heading over the ranked facility table.
func TableTitle(r dashboard.Result) string {
	return fmt.Sprintf("Top %d Facilities for %s in %s (%s)", r.Selection.TopN, r.Selection.Year, r.Location, r.Unit)
}

// SeriesTitle is the heading over the per-year chart.
func SeriesTitle(r dashboard.Result) string {
	return fmt.Sprintf("Annual Emissions (%s): %s vs Top %d Facilities", r.Unit, r.Location, r.Selection.TopN)
}

// Pollutants joins a facility's pollutant list.
func Pollutants(ps []string) string { return strings.Join(ps, ", ") }
