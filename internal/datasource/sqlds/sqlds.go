// Package sqlds reads the emissions table from a relational database. The
// result set's column names play the role of the CSV header, so the same
// loader serves both kinds of source.
//
// Supported drivers: "sqlite" (modernc.org/sqlite), "postgres" (pgx pool),
// "mssql" (go-mssqldb) and "mysql" (go-sql-driver/mysql).
package sqlds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"echoair/internal/parser"
)

// Config selects the driver and what to read. Table is read with SELECT *
// when Query is empty.
type Config struct {
	Driver string
	DSN    string
	Table  string
	Query  string
}

// cursor is the minimal row iterator both database/sql and pgx can provide.
type cursor interface {
	Columns() ([]string, error)
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// opener connects and runs query, returning a cursor that owns the
// connection.
type opener func(ctx context.Context, dsn, query string) (cursor, error)

var (
	regMu   sync.RWMutex
	openers = map[string]opener{}
	quoters = map[string]func(string) string{}
)

// register makes a driver available to Open. Each driver file calls it from
// init.
func register(name string, open opener, quote func(string) string) {
	regMu.Lock()
	defer regMu.Unlock()
	openers[name] = open
	quoters[name] = quote
}

// Drivers lists the registered driver names.
func Drivers() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open runs the configured query and returns the result as parser.Rows.
func Open(ctx context.Context, cfg Config) (*Rows, error) {
	regMu.RLock()
	open, ok := openers[cfg.Driver]
	quote := quoters[cfg.Driver]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sqlds: unknown driver %q (have %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlds: %s: DSN must not be empty", cfg.Driver)
	}

	query := strings.TrimSpace(cfg.Query)
	if query == "" {
		if strings.TrimSpace(cfg.Table) == "" {
			return nil, errors.New("sqlds: table or query required")
		}
		query = "SELECT * FROM " + quoteFQN(cfg.Table, quote)
	}

	cur, err := open(ctx, cfg.DSN, query)
	if err != nil {
		return nil, fmt.Errorf("sqlds: %s: %w", cfg.Driver, err)
	}
	cols, err := cur.Columns()
	if err != nil {
		_ = cur.Close()
		return nil, fmt.Errorf("sqlds: %s: columns: %w", cfg.Driver, err)
	}
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.TrimSpace(c)
	}
	return &Rows{cur: cur, header: header, row: make(parser.Row, len(cols)), line: 1}, nil
}

// Rows adapts a database cursor to parser.Rows. Every value is rendered as
// text so typed columns load exactly like CSV cells.
type Rows struct {
	cur    cursor
	header []string
	row    parser.Row
	line   int
	err    error
	done   bool
}

var _ parser.Rows = (*Rows)(nil)

// Header implements parser.Rows.
func (r *Rows) Header() []string { return r.header }

// Next implements parser.Rows.
func (r *Rows) Next() bool {
	if r.done {
		return false
	}
	if !r.cur.Next() {
		r.done = true
		r.err = r.cur.Err()
		return false
	}
	vals, err := r.cur.Values()
	if err != nil {
		r.done = true
		r.err = fmt.Errorf("sqlds: scan row %d: %w", r.line, err)
		return false
	}
	r.line++
	for i := range r.row {
		if i < len(vals) {
			r.row[i] = textCell(vals[i])
		} else {
			r.row[i] = sql.NullString{}
		}
	}
	return true
}

// Row implements parser.Rows.
func (r *Rows) Row() parser.Row { return r.row }

// Line implements parser.Rows.
func (r *Rows) Line() int { return r.line }

// Err implements parser.Rows.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor and its connection.
func (r *Rows) Close() error {
	r.done = true
	return r.cur.Close()
}

// textCell renders a driver value as text. NULL and empty strings are absent.
func textCell(v any) sql.NullString {
	var s string
	switch x := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		s = x
	case []byte:
		s = string(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int:
		s = strconv.Itoa(x)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.Format(time.RFC3339)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// quoteFQN quotes each dot-separated part of a table name.
func quoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// ansiQuote is the standard double-quoted identifier form.
func ansiQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sqlCursor adapts *sql.Rows (plus the owning *sql.DB) to cursor.
type sqlCursor struct {
	db   *sql.DB
	rows *sql.Rows
	n    int
}

func openDatabaseSQL(ctx context.Context, driverName, dsn, query string) (cursor, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("query: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = db.Close()
		return nil, fmt.Errorf("columns: %w", err)
	}
	return &sqlCursor{db: db, rows: rows, n: len(cols)}, nil
}

func (c *sqlCursor) Columns() ([]string, error) { return c.rows.Columns() }
func (c *sqlCursor) Next() bool                 { return c.rows.Next() }
func (c *sqlCursor) Err() error                 { return c.rows.Err() }

func (c *sqlCursor) Values() ([]any, error) {
	vals := make([]any, c.n)
	ptrs := make([]any, c.n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func (c *sqlCursor) Close() error {
	return errors.Join(c.rows.Close(), c.db.Close())
}
