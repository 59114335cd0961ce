// Package csv implements the streaming CSV reader behind the dataset loader.
// It never buffers the whole file: rows are pulled one at a time from
// encoding/csv with record reuse, and optional byte-level fixes are applied
// by a bounded-memory rewriter before the bytes reach the CSV tokenizer.
package csv

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"

	"echoair/internal/config"
	"echoair/internal/parser"
)

// Rows streams a CSV document as parser.Rows.
//
// Options (all optional, read from config.Options):
//   - comma (string; first rune; default ',')
//   - lazy_quotes (bool; default false)
//   - trim_space (bool; default true) trims cell values
//   - header_map (object) renames source headers after trimming
//   - skip_malformed (bool; default false) drops rows encoding/csv rejects
//     instead of failing the stream; see Skipped
//   - stream_replace (object) byte sequences rewritten before parsing
//
// Header names are always whitespace-trimmed and the UTF-8 BOM is removed
// from the first one; no other case or spacing normalization is applied.
type Rows struct {
	rc     io.Closer
	cr     *csv.Reader
	header []string
	row    parser.Row

	trim          bool
	skipMalformed bool

	line    int
	skipped int
	err     error
	done    bool
}

var _ parser.Rows = (*Rows)(nil)

// ErrEmptyInput is returned by NewRows when the stream has no header line.
var ErrEmptyInput = errors.New("csv: empty input")

// NewRows reads the header from src and returns a Rows positioned before the
// first data row. src is closed by Rows.Close, or immediately when NewRows
// fails.
func NewRows(src io.ReadCloser, opt config.Options) (*Rows, error) {
	var r io.Reader = src
	if repl := opt.StringMap("stream_replace"); len(repl) > 0 {
		keys := make([]string, 0, len(repl))
		for k := range repl {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		r = wrapReplacements(r, keys, repl)
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	rows := &Rows{
		rc:            src,
		cr:            cr,
		trim:          opt.Bool("trim_space", true),
		skipMalformed: opt.Bool("skip_malformed", false),
	}

	hdr, err := cr.Read()
	rows.line = 1
	if err != nil {
		_ = src.Close()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInput
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	rows.header = normalizeHeader(slices.Clone(hdr), opt.StringMap("header_map"))
	rows.row = make(parser.Row, len(rows.header))
	return rows, nil
}

// normalizeHeader trims names, strips a UTF-8 BOM from the first one and
// applies header_map.
func normalizeHeader(h []string, hm map[string]string) []string {
	for i, name := range h {
		if i == 0 {
			name = strings.TrimPrefix(name, "\uFEFF")
		}
		name = strings.TrimSpace(name)
		if mapped, ok := hm[name]; ok {
			name = mapped
		}
		h[i] = name
	}
	return h
}

// Header implements parser.Rows.
func (r *Rows) Header() []string { return r.header }

// Next implements parser.Rows. Short rows leave trailing cells absent; extra
// cells beyond the header are ignored.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	for {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			return false
		}
		if err != nil {
			var pe *csv.ParseError
			if r.skipMalformed && errors.As(err, &pe) {
				r.skipped++
				continue
			}
			r.err = fmt.Errorf("csv: %w", err)
			r.done = true
			return false
		}
		r.line, _ = r.cr.FieldPos(0)

		for i := range r.row {
			if i >= len(rec) {
				r.row[i] = sql.NullString{}
				continue
			}
			v := rec[i]
			if r.trim && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			r.row[i] = sql.NullString{String: v, Valid: v != ""}
		}
		return true
	}
}

// Row implements parser.Rows.
func (r *Rows) Row() parser.Row { return r.row }

// Line implements parser.Rows.
func (r *Rows) Line() int { return r.line }

// Err implements parser.Rows.
func (r *Rows) Err() error { return r.err }

// Skipped reports how many malformed rows were dropped under skip_malformed.
func (r *Rows) Skipped() int { return r.skipped }

// Close closes the underlying stream.
func (r *Rows) Close() error {
	r.done = true
	return r.rc.Close()
}

// hasEdgeSpace reports whether s starts or ends with white space, so the
// common already-clean cell skips strings.TrimSpace.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsSpace(rune(s[0])) || unicode.IsSpace(rune(s[len(s)-1]))
}
