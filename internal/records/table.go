package records

import (
	"database/sql"
	"encoding/binary"
	"iter"
	"math"
	"slices"
	"sync"

	"github.com/zeebo/xxh3"
)

// LoadStats describes how a table was built.
type LoadStats struct {
	// Rows is the number of records in the table.
	Rows int
	// DroppedRows counts source rows discarded because REGISTRY_ID was absent.
	DroppedRows int
	// SkippedRows counts malformed source rows dropped by the reader.
	SkippedRows int
	// Columns is the normalized source header.
	Columns []string
}

// Table is an immutable sequence of records.
type Table struct {
	rows  []Record
	stats LoadStats

	fpOnce sync.Once
	fp     uint64
}

// NewTable returns a table over a copy of rs.
func NewTable(rs []Record) *Table {
	return &Table{rows: slices.Clone(rs), stats: LoadStats{Rows: len(rs)}}
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th record by value.
func (t *Table) Row(i int) Record { return t.rows[i] }

// All iterates records in table order.
func (t *Table) All() iter.Seq2[int, Record] {
	return func(yield func(int, Record) bool) {
		for i, r := range t.rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Records returns a copy of the records.
func (t *Table) Records() []Record { return slices.Clone(t.rows) }

// Stats returns load statistics. Derived tables report only Rows.
func (t *Table) Stats() LoadStats { return t.stats }

// Where returns a new table holding the records for which keep is true, in
// the original order.
func (t *Table) Where(keep func(Record) bool) *Table {
	out := make([]Record, 0, len(t.rows)/4)
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Table{rows: out, stats: LoadStats{Rows: len(out)}}
}

// Distinct returns the distinct present values of text column c in order of
// first appearance.
func (t *Table) Distinct(c Column) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		v := r.Text(c)
		if !v.Valid {
			continue
		}
		if _, ok := seen[v.String]; ok {
			continue
		}
		seen[v.String] = struct{}{}
		out = append(out, v.String)
	}
	return out
}

// Emissions returns the ANNUAL_EMISSION column, absent values included.
func (t *Table) Emissions() []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Emission
	}
	return out
}

// Fingerprint is an xxh3 digest of the table content. Equal tables have equal
// fingerprints regardless of how they were loaded.
func (t *Table) Fingerprint() uint64 {
	t.fpOnce.Do(func() {
		h := xxh3.New()
		var num [9]byte
		text := func(v sql.NullString) {
			if v.Valid {
				_, _ = h.WriteString(v.String)
			}
			_, _ = h.Write([]byte{0x1f, boolByte(v.Valid)})
		}
		float := func(v sql.NullFloat64) {
			binary.LittleEndian.PutUint64(num[:8], math.Float64bits(v.Float64))
			num[8] = boolByte(v.Valid)
			_, _ = h.Write(num[:])
		}
		for _, r := range t.rows {
			text(sql.NullString{String: r.FacilityID, Valid: true})
			text(r.Year)
			text(r.Program)
			text(r.Pollutant)
			text(r.Unit)
			float(r.Emission)
			text(r.State)
			text(r.City)
			text(r.Postal)
			text(r.FIPS)
			text(r.EPARegion)
			text(r.Name)
			float(r.Latitude)
			float(r.Longitude)
			_, _ = h.Write([]byte{0x1e})
		}
		t.fp = h.Sum64()
	})
	return t.fp
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
