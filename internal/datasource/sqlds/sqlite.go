package sqlds

import (
	"context"

	_ "modernc.org/sqlite" // registers "sqlite"
)

func init() {
	register("sqlite", func(ctx context.Context, dsn, query string) (cursor, error) {
		return openDatabaseSQL(ctx, "sqlite", dsn, query)
	}, ansiQuote)
}
