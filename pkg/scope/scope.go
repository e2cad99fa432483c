// Package scope enforces tenant isolation on persistence access.
//
// Every store for a tenant-scoped entity type takes a Scope and conjoins its
// predicate onto each query, so no read or write crosses organization
// boundaries. The default construction path reads the resolved tenant from the
// request context; the bypass and fixed-tenant paths are named distinctly
// (WithoutScope, ForTenant) so accidental use is visible in review.
package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
)

// ErrTenantNotSet is returned when a tenant-scoped operation is attempted with
// no resolved organization. Callers surface it as a rejection; it is never
// silently defaulted.
var ErrTenantNotSet = errors.New("no organization resolved for tenant-scoped operation")

// Scope carries the tenant predicate applied to queries for tenant-scoped
// entities. The zero value is unusable: construct via FromContext, ForTenant
// or WithoutScope.
type Scope struct {
	orgID  int64
	bypass bool
	valid  bool
}

// FromContext builds a Scope from the resolved tenant in the request context.
// Fails closed with ErrTenantNotSet when no tenant was resolved.
func FromContext(ctx context.Context) (Scope, error) {
	orgID, ok := contextkeys.GetTenant(ctx)
	if !ok {
		return Scope{}, ErrTenantNotSet
	}
	return Scope{orgID: orgID, valid: true}, nil
}

// ForTenant builds a Scope pinned to an explicit organization, regardless of
// the caller's resolved tenant. For administrative tooling only.
func ForTenant(orgID int64) Scope {
	return Scope{orgID: orgID, valid: true}
}

// WithoutScope builds a Scope that skips tenant filtering entirely. For
// cross-tenant administrative tooling only.
func WithoutScope() Scope {
	return Scope{bypass: true, valid: true}
}

// IsBypass reports whether tenant filtering is disabled
func (s Scope) IsBypass() bool {
	return s.bypass
}

// OrgID returns the scoped organization ID. ok is false for a bypass scope.
func (s Scope) OrgID() (int64, bool) {
	if !s.valid || s.bypass {
		return 0, false
	}
	return s.orgID, true
}

// RequireOrgID returns the scoped organization ID for writes that must carry a
// tenant. Bypass scopes cannot create tenant-scoped rows.
func (s Scope) RequireOrgID() (int64, error) {
	orgID, ok := s.OrgID()
	if !ok {
		return 0, ErrTenantNotSet
	}
	return orgID, nil
}

// Where returns an SQL predicate for the given column and the arguments to
// append, using argPos as the next positional parameter number. Bypass scopes
// return a tautology so queries compose uniformly.
func (s Scope) Where(column string, argPos int) (string, []interface{}) {
	if !s.valid {
		// Invalid scopes must never widen a query; match nothing.
		return "1 = 0", nil
	}
	if s.bypass {
		return "1 = 1", nil
	}
	return fmt.Sprintf("%s = $%d", column, argPos), []interface{}{s.orgID}
}
