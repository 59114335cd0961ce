package sqlds

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	register("postgres", openPostgres, ansiQuote)
}

// pgCursor adapts pgx.Rows (and the pool that owns the connection).
type pgCursor struct {
	pool *pgxpool.Pool
	rows pgx.Rows
}

func openPostgres(ctx context.Context, dsn, query string) (cursor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	rows, err := pool.Query(ctx, query)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("query: %w", err)
	}
	return &pgCursor{pool: pool, rows: rows}, nil
}

func (c *pgCursor) Columns() ([]string, error) {
	fds := c.rows.FieldDescriptions()
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	return out, nil
}

func (c *pgCursor) Next() bool { return c.rows.Next() }
func (c *pgCursor) Err() error { return c.rows.Err() }

func (c *pgCursor) Values() ([]any, error) {
	vals, err := c.rows.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if n, ok := v.(pgtype.Numeric); ok {
			vals[i] = numericValue(n)
		}
	}
	return vals, nil
}

func (c *pgCursor) Close() error {
	c.rows.Close()
	c.pool.Close()
	return nil
}

// numericValue renders NUMERIC columns through float64, which is what the
// loader parses emissions and coordinates into anyway.
func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}
