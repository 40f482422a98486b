package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/logger"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/repository"
	"github.com/skyhub/auth-service/internal/service"
	"github.com/skyhub/auth-service/internal/utils"
)

type stubUsers struct {
	byID    map[uint64]model.Principal
	lookups int
}

func (s *stubUsers) FindByID(_ context.Context, id uint64) (model.Principal, error) {
	s.lookups++
	p, ok := s.byID[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return p, nil
}

var authCfg = config.AuthConfig{
	AccessSecret:     "access-secret",
	AccessExpiresIn:  "1h",
	RefreshSecret:    "refresh-secret",
	RefreshExpiresIn: "7d",
	PublicPrefixes:   []string{"/blog/"},
}

type guardFixture struct {
	deps   GuardDeps
	users  *stubUsers
	tokens *service.TokenService
}

func newGuardFixture() *guardFixture {
	users := &stubUsers{byID: map[uint64]model.Principal{
		1: {ID: 1, Username: "sky", Email: "sky@hub.io", Role: model.RoleUser},
		2: {ID: 2, Username: "root", Email: "root@hub.io", Role: model.RoleAdmin},
	}}
	tokens := service.NewTokenService(authCfg)
	return &guardFixture{
		deps:   NewGuardDeps(tokens, users, authCfg, logger.Discard()),
		users:  users,
		tokens: tokens,
	}
}

func (f *guardFixture) token(t *testing.T, claims model.Claims) string {
	t.Helper()
	pair, err := f.tokens.Issue(claims)
	require.NoError(t, err)
	return pair.AccessToken
}

// run invokes the guard for meta and reports the handler's view of the
// principal alongside the guard error.
func run(f *guardFixture, meta model.RouteMeta, path, bearer string) (model.Principal, bool, bool, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var (
		reached bool
		p       model.Principal
		ok      bool
	)
	err := Guard(f.deps, meta)(func(c echo.Context) error {
		reached = true
		p, ok = PrincipalFrom(c)
		return nil
	})(c)
	return p, ok, reached, err
}

func TestGuard_PublicWithoutToken(t *testing.T) {
	f := newGuardFixture()
	_, ok, reached, err := run(f, model.Public(), "/auth/login", "")
	require.NoError(t, err)
	assert.True(t, reached)
	assert.False(t, ok)
}

func TestGuard_PublicWithValidTokenPopulatesPrincipal(t *testing.T) {
	f := newGuardFixture()
	p, ok, _, err := run(f, model.Public(), "/auth/login", f.token(t, model.Claims{Sub: 1, Username: "sky", Role: model.RoleUser}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.ID)
}

func TestGuard_PublicWithExpiredTokenProceedsUnset(t *testing.T) {
	f := newGuardFixture()
	expired, err := utils.SignHS256(authCfg.AccessSecret, model.Claims{Sub: 1}, -time.Minute)
	require.NoError(t, err)

	_, ok, reached, err := run(f, model.Public(), "/auth/login", expired)
	require.NoError(t, err)
	assert.True(t, reached)
	assert.False(t, ok)
}

func TestGuard_PublicPrefixOverridesMeta(t *testing.T) {
	f := newGuardFixture()
	_, _, reached, err := run(f, model.Admin(), "/blog/posts/1", "")
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestGuard_AuthenticatedIsPureTokenCheck(t *testing.T) {
	f := newGuardFixture()
	p, ok, _, err := run(f, model.Authenticated(), "/auth/me", f.token(t, model.Claims{Sub: 77, Username: "ghost", Role: model.RoleUser}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(77), p.ID)
	assert.Zero(t, f.users.lookups)
}

func TestGuard_MissingAndBadTokens(t *testing.T) {
	f := newGuardFixture()

	_, _, reached, err := run(f, model.Authenticated(), "/auth/me", "")
	assert.False(t, reached)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, _, _, err = run(f, model.Authenticated(), "/auth/me", "not-a-jwt")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	expired, signErr := utils.SignHS256(authCfg.AccessSecret, model.Claims{Sub: 1}, -time.Minute)
	require.NoError(t, signErr)
	_, _, _, err = run(f, model.Authenticated(), "/auth/me", expired)
	assert.True(t, apperr.Is(err, apperr.KindTokenExpired))
}

func TestGuard_LiveRoleWinsOverClaim(t *testing.T) {
	f := newGuardFixture()
	// Principal 1 is a user in the store but the token claims admin.
	tok := f.token(t, model.Claims{Sub: 1, Username: "sky", Role: model.RoleAdmin})

	_, _, reached, err := run(f, model.Roles(model.RoleAdmin), "/admin/me", tok)
	assert.False(t, reached)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, _, reached, err = run(f, model.Admin(), "/admin/me", tok)
	assert.False(t, reached)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestGuard_RolesAndAdminShareOneLookup(t *testing.T) {
	f := newGuardFixture()
	meta := model.RouteMeta{RequiredRoles: []model.Role{model.RoleAdmin}, IsAdminRoute: true}

	p, ok, reached, err := run(f, meta, "/admin/me", f.token(t, model.Claims{Sub: 2, Username: "root", Role: model.RoleAdmin}))
	require.NoError(t, err)
	assert.True(t, reached)
	require.True(t, ok)
	assert.Equal(t, "root@hub.io", p.Email)
	assert.Equal(t, 1, f.users.lookups)
}

func TestGuard_RoleSetAllowsUser(t *testing.T) {
	f := newGuardFixture()
	_, _, reached, err := run(f, model.Roles(model.RoleUser, model.RoleAdmin), "/user/profile", f.token(t, model.Claims{Sub: 1, Username: "sky"}))
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestGuard_UnknownPrincipal(t *testing.T) {
	f := newGuardFixture()
	_, _, _, err := run(f, model.Admin(), "/admin/me", f.token(t, model.Claims{Sub: 404, Username: "gone", Role: model.RoleAdmin}))
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestGuard_RecordsRejections(t *testing.T) {
	f := newGuardFixture()
	f.deps.Metrics = metrics.New()

	_, _, _, _ = run(f, model.Authenticated(), "/auth/me", "")
	_, _, _, _ = run(f, model.Authenticated(), "/auth/me", "not-a-jwt")
	_, _, _, _ = run(f, model.Admin(), "/admin/me", f.token(t, model.Claims{Sub: 1, Username: "sky"}))

	rec := httptest.NewRecorder()
	f.deps.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `auth_guard_rejections_total{reason="missing_token"} 1`)
	assert.Contains(t, body, `auth_guard_rejections_total{reason="invalid_token"} 1`)
	assert.Contains(t, body, `auth_guard_rejections_total{reason="admin"} 1`)
}

func TestBearerToken(t *testing.T) {
	e := echo.New()
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"standard":     {"Bearer abc", "abc", true},
		"lowercase":    {"bearer abc", "abc", true},
		"empty token":  {"Bearer   ", "", false},
		"basic scheme": {"Basic abc", "", false},
		"no header":    {"", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			got, ok := bearerToken(e.NewContext(req, httptest.NewRecorder()))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
