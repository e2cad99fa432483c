// Package authz decides whether a principal may perform an ability on an
// entity. Decisions combine a role-permission grant in the active
// organization with per-entity relationship overrides.
package authz

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PermissionChecker answers "does user U hold permission P in organization O"
// by walking memberships, roles and role permissions. Results are memoized in
// a TTL'd LRU so hot paths avoid repeating the join.
type PermissionChecker struct {
	db    *sql.DB
	cache *expirable.LRU[string, bool]
}

// NewPermissionChecker creates a checker with a memoization cache
func NewPermissionChecker(db *sql.DB, cacheSize int, cacheTTL time.Duration) *PermissionChecker {
	return &PermissionChecker{
		db:    db,
		cache: expirable.NewLRU[string, bool](cacheSize, nil, cacheTTL),
	}
}

// HasPermission checks whether the user holds the permission slug through any
// role in the given organization. Only roles local to that organization or
// global roles count: a membership row pointing at another org's role grants
// nothing.
func (c *PermissionChecker) HasPermission(ctx context.Context, userID, orgID int64, slug string) (bool, error) {
	key := cacheKey(userID, orgID, slug)
	if granted, ok := c.cache.Get(key); ok {
		return granted, nil
	}

	query := `
		SELECT COUNT(*)
		FROM organization_members om
		JOIN roles r ON r.id = om.role_id
			AND (r.organization_id = om.organization_id OR r.organization_id IS NULL)
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE om.organization_id = $1 AND om.user_id = $2 AND p.slug = $3
	`
	var count int
	if err := c.db.QueryRowContext(ctx, query, orgID, userID, slug).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	granted := count > 0
	c.cache.Add(key, granted)
	return granted, nil
}

// InvalidateUser drops all cached decisions for a user. Call after membership
// or role changes affecting them.
func (c *PermissionChecker) InvalidateUser(userID int64) {
	prefix := fmt.Sprintf("%d:", userID)
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// InvalidateAll drops every cached decision. Call after role permission edits,
// which can affect any member holding the role.
func (c *PermissionChecker) InvalidateAll() {
	c.cache.Purge()
}

func cacheKey(userID, orgID int64, slug string) string {
	return fmt.Sprintf("%d:%d:%s", userID, orgID, slug)
}
