// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the members table when it does not exist. The account
// service owns this table in production; this keeps standalone and test
// deployments bootable.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	q := `
	CREATE TABLE IF NOT EXISTS members (
		email   TEXT PRIMARY KEY,
		name    TEXT NOT NULL DEFAULT '',
		picture TEXT NOT NULL DEFAULT '',
		streak  INT  NOT NULL DEFAULT 0
	)`
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to ensure members schema: %w", err)
	}
	return nil
}
