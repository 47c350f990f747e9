package users

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/middleware"
)

// Route is one entry of the users route table. Roles lists who may call it;
// an empty list means any authenticated user.
type Route struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
	Roles   []Role
	WithID  bool
}

// Routes returns the route table for the users plugin. Every endpoint is
// admin-only.
func Routes(h *Handler) []Route {
	admin := []Role{RoleAdmin}
	return []Route{
		{Method: http.MethodPost, Path: "", Handler: h.Create, Roles: admin},
		{Method: http.MethodGet, Path: "", Handler: h.List, Roles: admin},
		{Method: http.MethodGet, Path: "/:id", Handler: h.Show, Roles: admin, WithID: true},
		{Method: http.MethodPut, Path: "/:id", Handler: h.Replace, Roles: admin, WithID: true},
		{Method: http.MethodPatch, Path: "/:id", Handler: h.Patch, Roles: admin, WithID: true},
		{Method: http.MethodDelete, Path: "/:id", Handler: h.Delete, Roles: admin, WithID: true},
	}
}

// RegisterRoutes mounts the users endpoints under /users. requireAuth runs
// first on every route; requireRoles builds the per-route role check from
// the table. The id check runs after both so unauthenticated callers get
// 401 rather than 400.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth echo.MiddlewareFunc, requireRoles func(...Role) echo.MiddlewareFunc) {
	g := e.Group("/users", requireAuth)

	for _, r := range Routes(h) {
		mw := []echo.MiddlewareFunc{requireRoles(r.Roles...)}
		if r.WithID {
			mw = append(mw, middleware.PositiveIntParam("id"))
		}
		g.Add(r.Method, r.Path, r.Handler, mw...)
	}
}
