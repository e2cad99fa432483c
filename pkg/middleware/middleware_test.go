package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

func TestAuthMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tokenManager := auth.NewTokenManager(db)
	now := time.Now()

	token, tokenHash, _, err := auth.NewTokenGenerator().GenerateToken()
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r)
		require.NotNil(t, principal)
		assert.Equal(t, int64(42), principal.ID)
		assert.NotEmpty(t, contextkeys.GetSessionID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewAuthMiddleware(tokenManager, false).Handler(next)

	t.Run("valid bearer token", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM api_tokens t").
			WithArgs(tokenHash).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "email", "password_hash", "current_organization_id",
				"is_super_admin", "is_active", "created_at", "updated_at", "last_login_at",
			}).AddRow(42, "Ada", "ada@example.com", "", nil, false, true, now, now, nil))
		mock.ExpectExec("UPDATE api_tokens SET last_used_at").
			WithArgs(tokenHash).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("optional mode passes anonymous requests through", func(t *testing.T) {
		anonymous := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Nil(t, GetPrincipal(r))
			w.WriteHeader(http.StatusNoContent)
		})
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		rec := httptest.NewRecorder()

		NewAuthMiddleware(tokenManager, true).Handler(anonymous).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

type staticMemberships struct {
	orgID int64
}

func (s staticMemberships) IsMember(_ context.Context, orgID, _ int64) (bool, error) {
	return orgID == s.orgID, nil
}

func (s staticMemberships) FirstOrganizationID(context.Context, int64) (int64, error) {
	return s.orgID, nil
}

type noopDefaults struct{}

func (noopDefaults) SetCurrentOrganization(context.Context, int64, *int64) error { return nil }

func TestTenantMiddleware(t *testing.T) {
	resolver := tenant.NewResolver(staticMemberships{orgID: 5}, noopDefaults{}, nil)
	principal := &auth.User{ID: 10}

	t.Run("stores the resolved tenant", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := contextkeys.GetTenant(r.Context())
			require.True(t, ok)
			assert.Equal(t, int64(5), orgID)
			w.WriteHeader(http.StatusNoContent)
		})

		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.Header.Set(tenant.HeaderName, "5")
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), principal))
		rec := httptest.NewRecorder()

		TenantMiddleware(resolver)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("continues without one when unresolved", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := contextkeys.GetTenant(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusNoContent)
		})

		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		rec := httptest.NewRecorder()

		TenantMiddleware(resolver)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRequireTenant(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("passes with a resolved tenant", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req = req.WithContext(contextkeys.WithTenant(req.Context(), 1))
		rec := httptest.NewRecorder()

		RequireTenant(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejects without one", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		rec := httptest.NewRecorder()

		RequireTenant(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checker := authz.NewPermissionChecker(db, 100, time.Minute)
	principal := &auth.User{ID: 10}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequirePermission(checker, "projects.view_any")(next)

	request := func(withPrincipal, withTenant bool) *http.Request {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		ctx := req.Context()
		if withPrincipal {
			ctx = contextkeys.WithPrincipal(ctx, principal)
		}
		if withTenant {
			ctx = contextkeys.WithTenant(ctx, int64(1))
		}
		return req.WithContext(ctx)
	}

	t.Run("granted", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT").
			WithArgs(int64(1), int64(10), "projects.view_any").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(true, true))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("no principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(false, true))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no tenant", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(true, false))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestIDMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, contextkeys.GetRequestID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestIDMiddleware(next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("honors a supplied id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()

		RequestIDMiddleware(next).ServeHTTP(rec, req)
		assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	})
}
