// Package rank orders aggregated facility rows and summarizes the selection.
package rank

import (
	"cmp"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"echoair/internal/aggregate"
)

// Table is the top-N slice of an aggregated selection, largest first.
type Table struct {
	// N is the requested size; len(Rows) is smaller when the input is.
	N    int
	Rows []aggregate.FacilityRow
}

// FacilityIDs returns the distinct facility ids of the ranked rows in rank
// order.
func (t Table) FacilityIDs() []string {
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		if !slices.Contains(out, r.Key.FacilityID) {
			out = append(out, r.Key.FacilityID)
		}
	}
	return out
}

// Stats summarizes the full aggregated selection. All values are unrounded.
type Stats struct {
	TotalEmissions    float64 `json:"total_emissions"`
	TotalFacilities   int     `json:"total_facilities"`
	TopEmissions      float64 `json:"top_emissions"`
	ProportionFromTop float64 `json:"proportion_from_top"`
}

// Rank sorts rows by emission descending and keeps the first topN. Ties are
// broken by facility id ascending, then by first appearance. rows is not
// modified.
func Rank(rows []aggregate.FacilityRow, topN int) (Table, Stats) {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, compare)

	n := min(max(topN, 0), len(sorted))
	t := Table{N: topN, Rows: sorted[:n:n]}

	var st Stats
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		st.TotalEmissions += r.Emission
		ids[r.Key.FacilityID] = struct{}{}
	}
	st.TotalFacilities = len(ids)
	for _, r := range t.Rows {
		st.TopEmissions += r.Emission
	}
	// A non-positive or overflowed total has no meaningful share.
	if st.TotalEmissions > 0 && !math.IsInf(st.TotalEmissions, 1) {
		st.ProportionFromTop = st.TopEmissions / st.TotalEmissions * 100
	}
	return t, st
}

func compare(a, b aggregate.FacilityRow) int {
	if c := cmp.Compare(b.Emission, a.Emission); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Key.FacilityID, b.Key.FacilityID); c != 0 {
		return c
	}
	return cmp.Compare(a.First, b.First)
}

// Rounded holds the one-decimal display values of a Stats.
type Rounded struct {
	TotalEmissions    decimal.Decimal `json:"total_emissions"`
	TotalFacilities   int             `json:"total_facilities"`
	TopEmissions      decimal.Decimal `json:"top_emissions"`
	ProportionFromTop decimal.Decimal `json:"proportion_from_top"`
}

// Rounded rounds each sum to one decimal place, half away from zero.
func (s Stats) Rounded() Rounded {
	return Rounded{
		TotalEmissions:    Round1(s.TotalEmissions),
		TotalFacilities:   s.TotalFacilities,
		TopEmissions:      Round1(s.TopEmissions),
		ProportionFromTop: Round1(s.ProportionFromTop),
	}
}

// Round1 rounds v to one decimal place. NaN and infinities round to zero.
func Round1(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(1)
}

// ValidTopN reports whether n is one of choices.
func ValidTopN(n int, choices []int) bool {
	return slices.Contains(choices, n)
}
