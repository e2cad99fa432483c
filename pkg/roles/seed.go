package roles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/crewdeck/pkg/permissions"
)

// SeedPermissions inserts the permission catalog. The catalog is immutable:
// existing slugs are left untouched, so re-running is safe.
func SeedPermissions(ctx context.Context, db *sql.DB) error {
	for _, p := range permissions.All() {
		_, err := db.ExecContext(ctx, `
			INSERT INTO permissions (slug, permission_group)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO NOTHING
		`, p.Slug, p.Group)
		if err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", p.Slug, err)
		}
	}
	return nil
}
