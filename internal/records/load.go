package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"echoair/internal/config"
	"echoair/internal/datasource"
	"echoair/internal/datasource/sqlds"
	"echoair/internal/parser"
	"echoair/internal/parser/csv"
)

// ErrMissingColumns is wrapped by a LoadError when the source header lacks
// one or more required columns.
var ErrMissingColumns = errors.New("missing required columns")

// LoadError reports a dataset that could not be loaded. It is fatal: no
// partial table is ever returned alongside it.
type LoadError struct {
	// Op is the failing step: "open", "header", "read".
	Op string
	// Line is the source line of a read failure, 0 otherwise.
	Line int
	// Missing lists absent required columns when Op is "header".
	Missing []string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load dataset: %s (line %d): %v", e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("load dataset: %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load opens src, parses it as CSV with opt and builds the table. The source
// stream is closed on every path.
func Load(ctx context.Context, src datasource.Source, opt config.Options) (*Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, &LoadError{Op: "open", Err: err}
	}
	rows, err := csv.NewRows(rc, opt)
	if err != nil {
		return nil, &LoadError{Op: "header", Err: err}
	}
	t, err := Read(ctx, rows)
	if err != nil {
		return nil, err
	}
	t.stats.SkippedRows = rows.Skipped()
	return t, nil
}

// LoadSQL runs the configured query and builds the table from its result set.
func LoadSQL(ctx context.Context, cfg sqlds.Config) (*Table, error) {
	rows, err := sqlds.Open(ctx, cfg)
	if err != nil {
		return nil, &LoadError{Op: "open", Err: err}
	}
	return Read(ctx, rows)
}

// Read drains rows into a table and closes it.
func Read(ctx context.Context, rows parser.Rows) (*Table, error) {
	defer rows.Close()

	b, err := NewBuilder(rows.Header())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		if b.Len()%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &LoadError{Op: "read", Line: rows.Line(), Err: err}
			}
		}
		b.Add(rows.Row())
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Op: "read", Line: rows.Line(), Err: err}
	}
	return b.Table(), nil
}

// Builder accumulates normalized records from header-aligned rows.
type Builder struct {
	header  []string
	idx     map[Column]int
	rows    []Record
	dropped int
}

// NewBuilder maps header onto the required columns. Extra columns are
// ignored; missing ones yield a *LoadError wrapping ErrMissingColumns that
// names all of them.
func NewBuilder(header []string) (*Builder, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make(map[Column]int, len(RequiredColumns))
	var missing []string
	for _, c := range RequiredColumns {
		i, ok := pos[string(c)]
		if !ok {
			missing = append(missing, string(c))
			continue
		}
		idx[c] = i
	}
	if len(missing) > 0 {
		return nil, &LoadError{
			Op:      "header",
			Missing: missing,
			Err:     fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", ")),
		}
	}
	return &Builder{header: append([]string(nil), header...), idx: idx}, nil
}

// Len returns the number of records accepted so far.
func (b *Builder) Len() int { return len(b.rows) }

// Add normalizes one row. Rows without a REGISTRY_ID are dropped and counted.
func (b *Builder) Add(row parser.Row) {
	cell := func(c Column) sql.NullString {
		i := b.idx[c]
		if i >= len(row) {
			return sql.NullString{}
		}
		return cleanText(row[i])
	}

	id := cell(ColFacilityID)
	if !id.Valid {
		b.dropped++
		return
	}
	b.rows = append(b.rows, Record{
		FacilityID: id.String,
		Year:       canonicalYear(cell(ColYear)),
		Program:    cell(ColProgram),
		Pollutant:  cell(ColPollutant),
		Unit:       cell(ColUnit),
		Emission:   ParseFloat(cell(ColEmission)),
		State:      cell(ColState),
		City:       cell(ColCity),
		Postal:     cell(ColPostal),
		FIPS:       cell(ColFIPS),
		EPARegion:  cell(ColEPARegion),
		Name:       cell(ColName),
		Latitude:   ParseFloat(cell(ColLatitude)),
		Longitude:  ParseFloat(cell(ColLongitude)),
	})
}

// Table freezes the builder into a Table. The builder must not be reused.
func (b *Builder) Table() *Table {
	rows := b.rows
	b.rows = nil
	return &Table{
		rows: rows,
		stats: LoadStats{
			Rows:        len(rows),
			DroppedRows: b.dropped,
			Columns:     b.header,
		},
	}
}

// cleanText trims and NFC-normalizes a cell; blank cells become absent.
func cleanText(v sql.NullString) sql.NullString {
	if !v.Valid {
		return v
	}
	s := strings.TrimSpace(v.String)
	if s == "" {
		return sql.NullString{}
	}
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return sql.NullString{String: s, Valid: true}
}

// canonicalYear rewrites integral decimal forms such as "2020.0" to "2020" so
// years read from float-typed exports still match.
func canonicalYear(v sql.NullString) sql.NullString {
	if !v.Valid || !strings.Contains(v.String, ".") {
		return v
	}
	f, err := strconv.ParseFloat(v.String, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return v
	}
	return sql.NullString{String: strconv.FormatInt(int64(f), 10), Valid: true}
}

// ParseFloat is the lenient numeric coercion used for emissions and
// coordinates: unparseable or non-finite text is absent, never an error.
func ParseFloat(v sql.NullString) sql.NullFloat64 {
	if !v.Valid {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
