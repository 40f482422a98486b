package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/repository"
)

// TokenVerifier verifies access tokens. Errors are *apperr.Error of kind
// Unauthorized or TokenExpired.
type TokenVerifier interface {
	VerifyAccess(token string) (model.Claims, error)
}

// PrincipalFinder loads the live principal for role checks.
type PrincipalFinder interface {
	FindByID(ctx context.Context, id uint64) (model.Principal, error)
}

// GuardDeps is shared by every guarded route.
type GuardDeps struct {
	Tokens         TokenVerifier
	Users          PrincipalFinder
	WhiteList      []string
	PublicPrefixes []string
	Log            logrus.FieldLogger
	Metrics        *metrics.Metrics
}

func NewGuardDeps(tokens TokenVerifier, users PrincipalFinder, cfg config.AuthConfig, log logrus.FieldLogger) GuardDeps {
	return GuardDeps{
		Tokens:         tokens,
		Users:          users,
		WhiteList:      cfg.WhiteList,
		PublicPrefixes: cfg.PublicPrefixes,
		Log:            log,
	}
}

// isPublicPath reports whether path starts with a whitelisted path or a
// public prefix.
func (d GuardDeps) isPublicPath(path string) bool {
	for _, p := range d.WhiteList {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	for _, p := range d.PublicPrefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Guard returns the per-route guard for meta. Stages run in order:
//
//  1. public override: a valid token populates the principal, anything
//     else is ignored and the request proceeds.
//  2. required roles: the live role must be in meta.RequiredRoles.
//  3. admin route: the live role must be admin.
//
// Stages 2 and 3 share one identity lookup. Routes with neither only
// verify the token.
func Guard(d GuardDeps, meta model.RouteMeta) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if meta.IsPublic || d.isPublicPath(c.Request().URL.Path) {
				if raw, ok := bearerToken(c); ok {
					if claims, err := d.Tokens.VerifyAccess(raw); err == nil {
						SetPrincipal(c, principalFromClaims(claims))
					}
				}
				return next(c)
			}

			raw, ok := bearerToken(c)
			if !ok {
				d.Metrics.GuardRejection("missing_token")
				return apperr.Unauthorized("missing bearer token")
			}
			claims, err := d.Tokens.VerifyAccess(raw)
			if err != nil {
				if apperr.Is(err, apperr.KindTokenExpired) {
					d.Metrics.GuardRejection("expired_token")
				} else {
					d.Metrics.GuardRejection("invalid_token")
				}
				return err
			}
			p := principalFromClaims(claims)

			if meta.NeedsLiveRole() {
				live, err := d.Users.FindByID(c.Request().Context(), claims.Sub)
				if errors.Is(err, repository.ErrNotFound) {
					d.Metrics.GuardRejection("unknown_principal")
					return apperr.Unauthorized("principal no longer exists")
				}
				if err != nil {
					return apperr.Internal("load principal failed", err)
				}
				if !meta.RoleAllowed(live.Role) {
					d.Metrics.GuardRejection("role")
					d.Log.WithFields(logrus.Fields{"user_id": live.ID, "role": live.Role, "path": c.Path()}).Info("role check refused")
					return apperr.Unauthorized("insufficient role")
				}
				if meta.IsAdminRoute && !live.IsAdmin() {
					d.Metrics.GuardRejection("admin")
					d.Log.WithFields(logrus.Fields{"user_id": live.ID, "path": c.Path()}).Info("admin check refused")
					return apperr.Unauthorized("no admin privilege")
				}
				p = live
			}

			SetPrincipal(c, p)
			return next(c)
		}
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(auth[len(prefix):])
	return raw, raw != ""
}
