// Package filter narrows a record table to a user selection. Every step
// returns a fresh table; the input is never modified.
package filter

import (
	"slices"

	"echoair/internal/config"
	"echoair/internal/records"
)

// Sentinels accepted in place of a concrete pollutant or city.
const (
	AllPollutants = "All"
	AllCities     = "All"
)

// Predicate is a single filtering step.
type Predicate interface {
	Apply(*records.Table) *records.Table
}

// Chain is an ordered list of predicates combined with AND.
type Chain []Predicate

// Apply runs each predicate left to right on the output of the previous one.
func (c Chain) Apply(in *records.Table) *records.Table {
	out := in
	for _, p := range c {
		out = p.Apply(out)
	}
	return out
}

// Func adapts a per-record test to a Predicate.
type Func func(records.Record) bool

// Apply implements Predicate.
func (f Func) Apply(t *records.Table) *records.Table { return t.Where(f) }

// Equals keeps records whose text column c is present and equal to v.
func Equals(c records.Column, v string) Predicate {
	return Func(func(r records.Record) bool { return r.Is(c, v) })
}

// Geography is either a single state code or the continental United States.
type Geography struct {
	state       string
	continental bool
	excluded    []string
}

// State selects records with the given state code.
func State(code string) Geography { return Geography{state: code} }

// ContinentalUS selects records whose state is present and not one of the
// default non-continental codes.
func ContinentalUS() Geography { return ContinentalExcluding(config.DefaultNonContinental) }

// ContinentalExcluding is ContinentalUS with a custom exclusion list.
func ContinentalExcluding(codes []string) Geography {
	return Geography{continental: true, excluded: slices.Clone(codes)}
}

// Continental reports whether g is the continental selection.
func (g Geography) Continental() bool { return g.continental }

// StateCode returns the selected state, or "" for the continental selection.
func (g Geography) StateCode() string { return g.state }

// Contains reports whether a record's state falls inside g.
func (g Geography) Contains(r records.Record) bool {
	if !r.State.Valid {
		return false
	}
	if g.continental {
		return !slices.Contains(g.excluded, r.State.String)
	}
	return r.State.String == g.state
}

// Apply implements Predicate.
func (g Geography) Apply(t *records.Table) *records.Table { return t.Where(g.Contains) }

// Predicates is a full dashboard selection.
type Predicates struct {
	Program   string
	Pollutant string // AllPollutants disables the step
	Geography Geography
	City      string // AllCities or "" disables the step; ignored when continental
	Year      string
}

// selectionChain is program, pollutant, geography then city.
func (p Predicates) selectionChain() Chain {
	c := Chain{Equals(records.ColProgram, p.Program)}
	if p.Pollutant != AllPollutants {
		c = append(c, Equals(records.ColPollutant, p.Pollutant))
	}
	c = append(c, p.Geography)
	if p.HasCity() {
		c = append(c, Equals(records.ColCity, p.City))
	}
	return c
}

// HasCity reports whether the city step is active.
func (p Predicates) HasCity() bool {
	return !p.Geography.continental && p.City != "" && p.City != AllCities
}

// Selection applies every step except the year.
func Selection(t *records.Table, p Predicates) *records.Table {
	return p.selectionChain().Apply(t)
}

// Year keeps records reported for year.
func Year(t *records.Table, year string) *records.Table {
	return Equals(records.ColYear, year).Apply(t)
}

// Apply is Year(Selection(t, p), p.Year).
func Apply(t *records.Table, p Predicates) *records.Table {
	return Year(Selection(t, p), p.Year)
}

// Program applies the program and pollutant steps only.
func Program(t *records.Table, program, pollutant string) *records.Table {
	c := Chain{Equals(records.ColProgram, program)}
	if pollutant != AllPollutants {
		c = append(c, Equals(records.ColPollutant, pollutant))
	}
	return c.Apply(t)
}

// Unit is the unit of measure of a program/pollutant slice.
type Unit struct {
	// Name is the unit of the first row, "" when the slice is empty or the
	// first row has no unit.
	Name string
	// Seen lists every distinct unit in first-appearance order.
	Seen []string
}

// Mixed reports whether more than one distinct unit was seen.
func (u Unit) Mixed() bool { return len(u.Seen) > 1 }

// ResolveUnit reads the unit of measure from a program/pollutant slice.
func ResolveUnit(t *records.Table) Unit {
	u := Unit{Seen: t.Distinct(records.ColUnit)}
	if t.Len() > 0 {
		u.Name = t.Row(0).Unit.String
	}
	return u
}
