// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/platinummonkey/crewdeck/pkg/contextkeys"
//   ctx = contextkeys.WithPrincipal(ctx, user)
//   principal := ctx.Value(contextkeys.PrincipalKey)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.User
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, tenant resolution, authz engine
	// Type: *auth.User
	PrincipalKey Key = "principal"

	// TenantKey contains the resolved organization ID
	// Set by: middleware.TenantMiddleware (pkg/middleware/tenant.go)
	// Required by: All tenant-scoped stores, authz engine
	// Type: int64
	TenantKey Key = "tenant_id"

	// SessionIDKey contains the session identifier string
	// Set by: middleware.AuthMiddleware
	// Used by: tenant.Resolver for per-session tenant caching
	// Type: string
	SessionIDKey Key = "session_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithTenant adds the resolved organization ID to the context
func WithTenant(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, TenantKey, orgID)
}

// WithSessionID adds the session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetTenant retrieves the resolved organization ID from context
func GetTenant(ctx context.Context) (int64, bool) {
	orgID, ok := ctx.Value(TenantKey).(int64)
	return orgID, ok
}

// GetSessionID retrieves the session ID from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
