package sqlds

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver"
	"github.com/microsoft/go-mssqldb/msdsn"
)

func init() {
	register("mssql", func(ctx context.Context, dsn, query string) (cursor, error) {
		// Validate DSN early to fail fast on obvious mistakes.
		if _, err := msdsn.Parse(dsn); err != nil {
			return nil, fmt.Errorf("dsn: %w", err)
		}
		return openDatabaseSQL(ctx, "sqlserver", dsn, query)
	}, mssqlQuote)
}

func mssqlQuote(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}
