package middleware

import (
	"net/http"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

// TenantMiddleware resolves the active organization for each request and
// stores it in the context. Requests with no resolvable tenant continue
// without one; tenant-scoped operations reject them downstream.
func TenantMiddleware(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)

			if orgID, ok := resolver.Resolve(r.Context(), r, principal); ok {
				ctx := contextkeys.WithTenant(r.Context(), orgID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant rejects requests that reach it without a resolved tenant
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := contextkeys.GetTenant(r.Context()); !ok {
			forbiddenResponse(w, "no active organization")
			return
		}
		next.ServeHTTP(w, r)
	})
}
