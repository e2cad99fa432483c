package middleware

import (
	"net/http"

	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
)

// RequirePermission creates middleware that checks a catalog permission in the
// active organization. Suited to collection routes; entity routes load the
// entity and ask the engine directly so relationship overrides apply.
func RequirePermission(checker *authz.PermissionChecker, slug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				forbiddenResponse(w, "authentication required")
				return
			}

			orgID, ok := contextkeys.GetTenant(r.Context())
			if !ok {
				forbiddenResponse(w, "no active organization")
				return
			}

			granted, err := checker.HasPermission(r.Context(), principal.ID, orgID, slug)
			if err != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if !granted {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
