// Package router registers every HTTP route together with its RouteMeta.
// Each route carries exactly one guard built from its descriptor.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/skyhub/auth-service/internal/handler"
	"github.com/skyhub/auth-service/internal/middleware"
	"github.com/skyhub/auth-service/internal/model"
)

// Deps bundles what the route table needs.
type Deps struct {
	Auth   *handler.AuthHandler
	Guard  middleware.GuardDeps
	Limit  echo.MiddlewareFunc
	Health echo.HandlerFunc
	// Metrics serves /metrics when set.
	Metrics echo.HandlerFunc
}

// Route is one entry of the route table.
type Route struct {
	Method  string
	Path    string
	Meta    model.RouteMeta
	Handler echo.HandlerFunc
	Limited bool
}

// Routes returns the route table.
func Routes(d Deps) []Route {
	a := d.Auth
	routes := []Route{
		{Method: echo.GET, Path: "/healthz", Meta: model.Public(), Handler: d.Health},

		{Method: echo.POST, Path: "/auth/send-code", Meta: model.Public(), Handler: a.SendCode, Limited: true},
		{Method: echo.POST, Path: "/auth/verify-code", Meta: model.Public(), Handler: a.VerifyCode},
		{Method: echo.POST, Path: "/auth/register", Meta: model.Public(), Handler: a.Register},
		{Method: echo.POST, Path: "/auth/login", Meta: model.Public(), Handler: a.Login, Limited: true},
		{Method: echo.POST, Path: "/auth/refresh", Meta: model.Public(), Handler: a.Refresh},
		{Method: echo.POST, Path: "/auth/refresh-token", Meta: model.Public(), Handler: a.Refresh},
		{Method: echo.GET, Path: "/auth/me", Meta: model.Authenticated(), Handler: a.Me},

		{Method: echo.GET, Path: "/user/profile", Meta: model.Roles(model.RoleUser, model.RoleAdmin), Handler: a.Profile},

		{Method: echo.POST, Path: "/admin/auth/login", Meta: model.Public(), Handler: a.AdminLogin, Limited: true},
		{Method: echo.POST, Path: "/admin/auth/refresh", Meta: model.Public(), Handler: a.Refresh},
		{Method: echo.GET, Path: "/admin/me", Meta: model.Admin(), Handler: a.Me},
	}
	if d.Metrics != nil {
		routes = append(routes, Route{Method: echo.GET, Path: "/metrics", Meta: model.Public(), Handler: d.Metrics})
	}
	return routes
}

// Register mounts the route table on e. The guard runs before the rate
// limiter so limiter keys can use the caller's id.
func Register(e *echo.Echo, d Deps) {
	for _, r := range Routes(d) {
		mws := []echo.MiddlewareFunc{middleware.Guard(d.Guard, r.Meta)}
		if r.Limited && d.Limit != nil {
			mws = append(mws, d.Limit)
		}
		e.Add(r.Method, r.Path, r.Handler, mws...)
	}
}
