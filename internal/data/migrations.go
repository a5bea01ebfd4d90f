package data

import (
	"context"
	"database/sql"

	"github.com/target/mmk-ui-auth/internal/migrate"
)

// RunMigrations applies the account cache schema and returns the versions it applied.
func RunMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	return migrate.Run(ctx, db)
}
