package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/crewdeck/pkg/allocations"
	"github.com/platinummonkey/crewdeck/pkg/audit"
	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/middleware"
	"github.com/platinummonkey/crewdeck/pkg/observability"
	"github.com/platinummonkey/crewdeck/pkg/orgs"
	"github.com/platinummonkey/crewdeck/pkg/projects"
	"github.com/platinummonkey/crewdeck/pkg/roles"
	"github.com/platinummonkey/crewdeck/pkg/tasks"
	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

// Deps carries the wired services the HTTP surface is built from
type Deps struct {
	Orgs        *orgs.PostgresService
	Users       *auth.UserStore
	Tokens      *auth.TokenManager
	Roles       *roles.Store
	Projects    *projects.Store
	Tasks       *tasks.Store
	Allocations *allocations.Store
	Engine      *authz.Engine
	Checker     *authz.PermissionChecker
	Resolver    *tenant.Resolver
	Audit       *audit.Store
	Metrics     *observability.Metrics
	Logger      *observability.Logger
}

// Server is the crewdeck HTTP API
type Server struct {
	router *mux.Router
	deps   Deps
}

// NewServer builds the router: request ID and metrics instrumentation on the
// outside, then authentication, then tenant resolution, then the handler
// groups under /api/v1.
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}

	s.router.Use(middleware.RequestIDMiddleware)
	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	}

	authMW := middleware.NewAuthMiddleware(deps.Tokens, false)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(authMW.Handler)
	v1.Use(middleware.TenantMiddleware(deps.Resolver))

	orgHandlers := NewOrgHandlers(deps.Orgs, deps.Resolver, deps.Engine, deps.Checker)
	if deps.Metrics != nil {
		orgHandlers.WithSwitchObserver(deps.Metrics.TenantSwitchesTotal.Inc)
	}
	if deps.Audit != nil {
		orgHandlers.WithAudit(deps.Audit)
	}
	orgHandlers.RegisterRoutes(v1)

	roleHandlers := NewRoleHandlers(deps.Roles, deps.Engine, deps.Checker)
	userHandlers := NewUserHandlers(deps.Users, deps.Tokens, deps.Engine, deps.Checker)
	if deps.Audit != nil {
		roleHandlers.WithAudit(deps.Audit)
		userHandlers.WithAudit(deps.Audit)
	}
	roleHandlers.RegisterRoutes(v1)
	userHandlers.RegisterRoutes(v1)
	NewProjectHandlers(deps.Projects, deps.Engine).RegisterRoutes(v1)
	NewTaskHandlers(deps.Tasks, deps.Engine).RegisterRoutes(v1)
	NewAllocationHandlers(deps.Allocations, deps.Engine).RegisterRoutes(v1)

	return s
}

// Router exposes the underlying router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
