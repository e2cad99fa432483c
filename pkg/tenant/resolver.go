// Package tenant resolves the active organization for a request.
//
// Resolution tries, in order: an explicit transport header, an explicit
// request parameter, the session-cached value, and finally the principal's
// default organization (falling back to their first membership). A candidate
// is accepted only when the principal is a member of that organization;
// otherwise resolution moves to the next source. Unauthenticated requests
// always resolve to no tenant.
package tenant

import (
	"context"
	"net/http"
	"strconv"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/orgs"
)

const (
	// HeaderName carries an explicit tenant on the request transport
	HeaderName = "X-Organization-ID"
	// ParamName carries an explicit tenant in query/form parameters
	ParamName = "organization_id"
)

// Source labels where a resolution came from, for metrics
type Source string

const (
	SourceHeader  Source = "header"
	SourceParam   Source = "param"
	SourceSession Source = "session"
	SourceDefault Source = "default"
)

// MembershipChecker answers membership questions during resolution.
// Implemented by orgs.PostgresService.
type MembershipChecker interface {
	IsMember(ctx context.Context, orgID, userID int64) (bool, error)
	FirstOrganizationID(ctx context.Context, userID int64) (int64, error)
}

// DefaultUpdater persists the user's default organization pointer.
// Implemented by auth.UserStore.
type DefaultUpdater interface {
	SetCurrentOrganization(ctx context.Context, userID int64, orgID *int64) error
}

// Observer is notified of resolution outcomes. Optional.
type Observer interface {
	TenantResolved(source Source)
	TenantUnresolved()
}

// Resolver produces the active organization for a unit of work
type Resolver struct {
	memberships MembershipChecker
	defaults    DefaultUpdater
	sessions    SessionStore
	observer    Observer
}

// NewResolver creates a tenant resolver
func NewResolver(memberships MembershipChecker, defaults DefaultUpdater, sessions SessionStore) *Resolver {
	return &Resolver{
		memberships: memberships,
		defaults:    defaults,
		sessions:    sessions,
	}
}

// WithObserver attaches a resolution observer (e.g. metrics)
func (r *Resolver) WithObserver(observer Observer) *Resolver {
	r.observer = observer
	return r
}

// Resolve determines the active organization for the request. It returns
// ok=false when no tenant can be established and raises no error; callers
// that require a tenant reject the operation themselves.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, principal *auth.User) (int64, bool) {
	// Fails closed: every source requires an authenticated principal for the
	// membership check.
	if principal == nil {
		r.observeMiss()
		return 0, false
	}

	sessionID := contextkeys.GetSessionID(ctx)

	// 1. Explicit header
	if raw := req.Header.Get(HeaderName); raw != "" {
		if orgID, ok := r.accept(ctx, raw, principal.ID); ok {
			r.cache(ctx, sessionID, orgID)
			r.observeHit(SourceHeader)
			return orgID, true
		}
	}

	// 2. Explicit request parameter
	if raw := requestParam(req, ParamName); raw != "" {
		if orgID, ok := r.accept(ctx, raw, principal.ID); ok {
			r.cache(ctx, sessionID, orgID)
			r.observeHit(SourceParam)
			return orgID, true
		}
	}

	// 3. Session-cached tenant
	if sessionID != "" && r.sessions != nil {
		if orgID, found, err := r.sessions.GetTenant(ctx, sessionID); err == nil && found {
			if ok, err := r.memberships.IsMember(ctx, orgID, principal.ID); err == nil && ok {
				r.observeHit(SourceSession)
				return orgID, true
			}
			// Stale cache (membership revoked since); drop it.
			_ = r.sessions.ClearTenant(ctx, sessionID)
		}
	}

	// 4. Principal's default organization, else first membership
	if orgID, ok := r.resolveDefault(ctx, principal); ok {
		r.cache(ctx, sessionID, orgID)
		r.observeHit(SourceDefault)
		return orgID, true
	}

	r.observeMiss()
	return 0, false
}

// Switch performs an explicit tenant switch. Unlike Resolve, a membership
// failure here rejects outright with orgs.ErrNotAMember instead of falling
// through to another source. On success the session cache and the user's
// default organization are both updated.
func (r *Resolver) Switch(ctx context.Context, principal *auth.User, orgID int64) error {
	ok, err := r.memberships.IsMember(ctx, orgID, principal.ID)
	if err != nil {
		return err
	}
	if !ok {
		return orgs.ErrNotAMember
	}

	if sessionID := contextkeys.GetSessionID(ctx); sessionID != "" && r.sessions != nil {
		if err := r.sessions.SetTenant(ctx, sessionID, orgID); err != nil {
			return err
		}
	}

	return r.defaults.SetCurrentOrganization(ctx, principal.ID, &orgID)
}

// accept parses a candidate identifier and verifies membership
func (r *Resolver) accept(ctx context.Context, raw string, userID int64) (int64, bool) {
	orgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orgID <= 0 {
		return 0, false
	}

	ok, err := r.memberships.IsMember(ctx, orgID, userID)
	if err != nil || !ok {
		return 0, false
	}

	return orgID, true
}

// resolveDefault uses the principal's current organization, then the first
// organization they joined.
func (r *Resolver) resolveDefault(ctx context.Context, principal *auth.User) (int64, bool) {
	if principal.CurrentOrganizationID != nil {
		orgID := *principal.CurrentOrganizationID
		if ok, err := r.memberships.IsMember(ctx, orgID, principal.ID); err == nil && ok {
			return orgID, true
		}
	}

	orgID, err := r.memberships.FirstOrganizationID(ctx, principal.ID)
	if err != nil {
		return 0, false
	}
	return orgID, true
}

// cache writes an accepted value back to the session, best effort
func (r *Resolver) cache(ctx context.Context, sessionID string, orgID int64) {
	if sessionID == "" || r.sessions == nil {
		return
	}
	_ = r.sessions.SetTenant(ctx, sessionID, orgID)
}

func (r *Resolver) observeHit(source Source) {
	if r.observer != nil {
		r.observer.TenantResolved(source)
	}
}

func (r *Resolver) observeMiss() {
	if r.observer != nil {
		r.observer.TenantUnresolved()
	}
}

// requestParam reads a parameter from the query string or form body
func requestParam(req *http.Request, name string) string {
	if v := req.URL.Query().Get(name); v != "" {
		return v
	}
	if req.Form == nil {
		// ParseForm is idempotent and tolerates bodyless requests
		_ = req.ParseForm()
	}
	return req.Form.Get(name)
}
