package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skyhub/auth-service/internal/model"
)

const principalKey = "principal"

// SetPrincipal stores the caller's principal on the request context.
func SetPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal resolved by the guard, if any. Public
// routes only carry one when the caller sent a valid token.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// userID returns the caller's id as a string, or "anon".
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.ID != 0 {
		return strconv.FormatUint(p.ID, 10)
	}
	return "anon"
}

func principalFromClaims(cl model.Claims) model.Principal {
	return model.Principal{ID: cl.Sub, Username: cl.Username, Email: cl.Email, Role: cl.Role}
}
