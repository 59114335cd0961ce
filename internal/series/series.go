// Package series builds the per-year comparison between the top facilities
// of a selection and the selection as a whole.
package series

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"echoair/internal/aggregate"
	"echoair/internal/filter"
	"echoair/internal/records"
)

// ColumnPrefix starts both series column names.
const ColumnPrefix = "ANNUAL_EMISSION_"

// Point is one year of the combined series.
type Point struct {
	Year      string  `json:"year"`
	Selection float64 `json:"selection"`
	Top       float64 `json:"top"`
}

// Combined is the year-keyed join of the selection and top-N series.
type Combined struct {
	// SelectionColumn is ANNUAL_EMISSION_<city|state|US>.
	SelectionColumn string `json:"selection_column"`
	// TopColumn is ANNUAL_EMISSION_Top<N>.
	TopColumn string `json:"top_column"`
	// Points are sorted by year ascending.
	Points []Point `json:"points"`
}

// Years returns the years of c in order.
func (c Combined) Years() []string {
	out := make([]string, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Year
	}
	return out
}

// Scope names the geographic extent of a selection: the city when one is
// chosen, else the state code, else US.
func Scope(p filter.Predicates) string {
	switch {
	case p.HasCity():
		return p.City
	case !p.Geography.Continental():
		return p.Geography.StateCode()
	default:
		return "US"
	}
}

// Reconcile sums the top facilities' emissions per year across the whole
// dataset and joins them with the per-year totals of the selection. The
// selection ignores p.Year. Years present on only one side get 0 on the
// other.
func Reconcile(full *records.Table, topIDs []string, p filter.Predicates, topN int) Combined {
	ids := make(map[string]struct{}, len(topIDs))
	for _, id := range topIDs {
		ids[id] = struct{}{}
	}
	top := filter.Program(full, p.Program, p.Pollutant).Where(func(r records.Record) bool {
		_, ok := ids[r.FacilityID]
		return ok
	})

	c := Combined{
		SelectionColumn: ColumnPrefix + Scope(p),
		TopColumn:       fmt.Sprintf("%sTop%d", ColumnPrefix, topN),
	}
	c.Points = Join(aggregate.ByYear(filter.Selection(full, p)), aggregate.ByYear(top))
	return c
}

// Join outer-joins the two per-year series on year and sorts the result.
func Join(selection, top []aggregate.YearTotal) []Point {
	pos := make(map[string]int, len(selection)+len(top))
	var out []Point
	at := func(year string) *Point {
		i, ok := pos[year]
		if !ok {
			i = len(out)
			pos[year] = i
			out = append(out, Point{Year: year})
		}
		return &out[i]
	}
	for _, y := range selection {
		at(y.Year).Selection += y.Emission
	}
	for _, y := range top {
		at(y.Year).Top += y.Emission
	}
	slices.SortFunc(out, func(a, b Point) int { return CompareYears(a.Year, b.Year) })
	return out
}

// CompareYears orders numeric years numerically and anything else after
// them, lexically.
func CompareYears(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(ai, bi)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return cmp.Compare(a, b)
}
