package model

// RouteMeta is the per-route descriptor attached at registration time and
// read by the guard chain on every request.
type RouteMeta struct {
	IsPublic      bool
	RequiredRoles []Role
	IsAdminRoute  bool
}

// Public marks a route that never requires a token.
func Public() RouteMeta { return RouteMeta{IsPublic: true} }

// Authenticated requires a valid access token and nothing else.
func Authenticated() RouteMeta { return RouteMeta{} }

// Roles requires a live role from the given set.
func Roles(roles ...Role) RouteMeta { return RouteMeta{RequiredRoles: roles} }

// Admin requires a live admin role.
func Admin() RouteMeta { return RouteMeta{IsAdminRoute: true} }

// NeedsLiveRole reports whether the guard must consult the identity store.
func (m RouteMeta) NeedsLiveRole() bool { return len(m.RequiredRoles) > 0 || m.IsAdminRoute }

// RoleAllowed reports whether role is in RequiredRoles. An empty set
// allows every role.
func (m RouteMeta) RoleAllowed(role Role) bool {
	if len(m.RequiredRoles) == 0 {
		return true
	}
	for _, r := range m.RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}
