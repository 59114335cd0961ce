// Package lorenz computes the Lorenz curve of facility emissions and the Gini
// coefficient derived from it.
package lorenz

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Point is an (x, y) pair on the unit square.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EqualityLine is the line of perfect equality.
var EqualityLine = [2]Point{{0, 0}, {1, 1}}

// Curve is a Lorenz curve. Shares is the cumulative share of facilities and
// Values the matching cumulative share of emissions. Both start at 0 and end
// at exactly 1 unless the curve is empty.
type Curve struct {
	Shares []float64 `json:"shares"`
	Values []float64 `json:"values"`
}

// Empty reports whether the curve was built from no positive values.
func (c Curve) Empty() bool { return len(c.Values) <= 1 }

// Points returns the curve as (share, value) pairs.
func (c Curve) Points() []Point {
	out := make([]Point, len(c.Values))
	for i := range c.Values {
		out[i] = Point{X: c.Shares[i], Y: c.Values[i]}
	}
	return out
}

// Positive returns the strictly positive finite values of vs.
func Positive(vs []float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if v > 0 && !math.IsInf(v, 1) {
			out = append(out, v)
		}
	}
	return out
}

// Compute builds the curve of values, which must be positive (see Positive).
// An empty input yields the single-point curve ([0], [0]).
func Compute(values []float64) Curve {
	n := len(values)
	if n == 0 {
		return Curve{Shares: []float64{0}, Values: []float64{0}}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	cum := make([]float64, n+1)
	floats.CumSum(cum[1:], sorted)
	total := cum[n]
	for i := 1; i < n; i++ {
		cum[i] /= total
	}
	cum[n] = 1

	shares := make([]float64, n+1)
	floats.Span(shares, 0, 1)
	shares[n] = 1

	return Curve{Shares: shares, Values: cum}
}

// Gini returns the Gini coefficient: one minus twice the area under the
// curve, by the trapezoid rule. It is 0 for an empty curve.
func (c Curve) Gini() float64 {
	if c.Empty() {
		return 0
	}
	var area float64
	for i := 1; i < len(c.Values); i++ {
		area += (c.Shares[i] - c.Shares[i-1]) * (c.Values[i] + c.Values[i-1]) / 2
	}
	return 1 - 2*area
}
