package sqlds

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

func init() {
	register("mysql", func(ctx context.Context, dsn, query string) (cursor, error) {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("dsn: %w", err)
		}
		// DATETIME columns come back as time.Time rather than raw bytes.
		cfg.ParseTime = true
		return openDatabaseSQL(ctx, "mysql", cfg.FormatDSN(), query)
	}, mysqlQuote)
}

func mysqlQuote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
