// Package aggregate sums annual emissions over group keys.
package aggregate

import (
	"database/sql"

	"echoair/internal/records"
)

// Group is the emission total of one key.
type Group[K comparable] struct {
	Key K
	// Emission is the sum of present ANNUAL_EMISSION values; 0 when none.
	Emission float64
	// Records counts member rows.
	Records int
	// Reported counts member rows with a present emission value.
	Reported int
	// First is the table index of the first member row.
	First int
}

// GroupBy sums emissions per key. Groups appear in order of first appearance.
func GroupBy[K comparable](t *records.Table, key func(records.Record) K) []Group[K] {
	pos := make(map[K]int)
	var out []Group[K]
	for i, r := range t.All() {
		k := key(r)
		j, ok := pos[k]
		if !ok {
			j = len(out)
			pos[k] = j
			out = append(out, Group[K]{Key: k, First: i})
		}
		g := &out[j]
		g.Records++
		if r.Emission.Valid {
			g.Emission += r.Emission.Float64
			g.Reported++
		}
	}
	return out
}

// FacilityKey identifies a facility-year. Absent components compare equal to
// each other and differ from every present value.
type FacilityKey struct {
	Year       sql.NullString
	FacilityID string
	Unit       sql.NullString
	Name       sql.NullString
	City       sql.NullString
	State      sql.NullString
	Postal     sql.NullString
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
}

// KeyOf returns the facility key of r.
func KeyOf(r records.Record) FacilityKey {
	return FacilityKey{
		Year:       text(r.Year),
		FacilityID: r.FacilityID,
		Unit:       text(r.Unit),
		Name:       text(r.Name),
		City:       text(r.City),
		State:      text(r.State),
		Postal:     text(r.Postal),
		Latitude:   num(r.Latitude),
		Longitude:  num(r.Longitude),
	}
}

func text(v sql.NullString) sql.NullString {
	if !v.Valid {
		return sql.NullString{}
	}
	return v
}

func num(v sql.NullFloat64) sql.NullFloat64 {
	if !v.Valid {
		return sql.NullFloat64{}
	}
	return v
}

// FacilityRow is one facility's summed emission.
type FacilityRow = Group[FacilityKey]

// ByFacility groups t by FacilityKey.
func ByFacility(t *records.Table) []FacilityRow {
	return GroupBy(t, KeyOf)
}

// YearTotal is the summed emission of one reporting year.
type YearTotal struct {
	Year     string
	Emission float64
}

// ByYear sums emissions per reporting year. Rows with no year are skipped.
func ByYear(t *records.Table) []YearTotal {
	groups := GroupBy(t, func(r records.Record) sql.NullString { return r.Year })
	out := make([]YearTotal, 0, len(groups))
	for _, g := range groups {
		if !g.Key.Valid {
			continue
		}
		out = append(out, YearTotal{Year: g.Key.String, Emission: g.Emission})
	}
	return out
}
