// Package records is the in-memory Record Store: it turns a parsed row stream
// into an immutable, typed Table of emission records.
//
// Every derived table (filters, views) is a fresh Table; nothing here is ever
// mutated after construction, so a *Table is safe for concurrent readers.
package records

import (
	"database/sql"
)

// Column names a required source column. Values are the exact header names
// (after whitespace trimming).
type Column string

const (
	ColFacilityID Column = "REGISTRY_ID"
	ColYear       Column = "REPORTING_YEAR"
	ColProgram    Column = "PGM_SYS_ACRNM"
	ColPollutant  Column = "POLLUTANT_NAME"
	ColUnit       Column = "UNIT_OF_MEASURE"
	ColEmission   Column = "ANNUAL_EMISSION"
	ColState      Column = "STATE_CODE"
	ColCity       Column = "CITY_NAME"
	ColPostal     Column = "POSTAL_CODE"
	ColFIPS       Column = "FIPS_CODE"
	ColEPARegion  Column = "EPA_REGION_CODE"
	ColName       Column = "PRIMARY_NAME"
	ColLatitude   Column = "LATITUDE83"
	ColLongitude  Column = "LONGITUDE83"
)

// RequiredColumns lists every column a dataset must carry, in canonical order.
var RequiredColumns = []Column{
	ColFacilityID, ColYear, ColProgram, ColPollutant, ColUnit, ColEmission,
	ColState, ColCity, ColPostal, ColFIPS, ColEPARegion, ColName,
	ColLatitude, ColLongitude,
}

// Record is one reported emission. FacilityID is always present; every other
// field may be absent (Valid == false).
type Record struct {
	FacilityID string
	Year       sql.NullString
	Program    sql.NullString
	Pollutant  sql.NullString
	Unit       sql.NullString
	Emission   sql.NullFloat64
	State      sql.NullString
	City       sql.NullString
	Postal     sql.NullString
	FIPS       sql.NullString
	EPARegion  sql.NullString
	Name       sql.NullString
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
}

// Text returns the value of a text column. Numeric columns and unknown names
// return an absent value.
func (r Record) Text(c Column) sql.NullString {
	switch c {
	case ColFacilityID:
		return sql.NullString{String: r.FacilityID, Valid: true}
	case ColYear:
		return r.Year
	case ColProgram:
		return r.Program
	case ColPollutant:
		return r.Pollutant
	case ColUnit:
		return r.Unit
	case ColState:
		return r.State
	case ColCity:
		return r.City
	case ColPostal:
		return r.Postal
	case ColFIPS:
		return r.FIPS
	case ColEPARegion:
		return r.EPARegion
	case ColName:
		return r.Name
	}
	return sql.NullString{}
}

// Is reports whether the text column c is present and equal to v.
func (r Record) Is(c Column, v string) bool {
	t := r.Text(c)
	return t.Valid && t.String == v
}

// Str wraps s as a text value; the empty string is absent.
func Str(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// Num wraps f as a present numeric value.
func Num(f float64) sql.NullFloat64 { return sql.NullFloat64{Float64: f, Valid: true} }
