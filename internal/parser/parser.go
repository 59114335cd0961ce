// Package parser defines the row-stream contract shared by every tabular
// reader (CSV files, SQL result sets). Readers yield a header once and then
// data rows whose cells line up with it.
package parser

import "database/sql"

// Row is one data row aligned with Rows.Header. Cells that were empty in the
// source (or SQL NULL) are not Valid.
type Row []sql.NullString

// Rows is a pull-style iterator in the manner of database/sql.Rows.
//
//	for rows.Next() {
//		r := rows.Row()
//		...
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows interface {
	// Header returns the normalized column names.
	Header() []string

	// Next advances to the next data row. It returns false at the end of the
	// stream or on a fatal error; check Err afterwards.
	Next() bool

	// Row returns the current row. The slice is reused by the next call to
	// Next; callers must copy what they keep.
	Row() Row

	// Line is the 1-based source position of the current row (CSV line or SQL
	// row ordinal counting the header as line 1).
	Line() int

	Err() error
	Close() error
}
