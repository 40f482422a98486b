package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/model"
)

func TestLogin_ByUsernameAndEmail(t *testing.T) {
	f := newFixture(t)
	p := f.users.add(t, "sky", "sky@hub.io", "secret1", model.RoleUser)

	for _, id := range []string{"sky", "Sky@Hub.io"} {
		pair, err := f.auth.Login(context.Background(), id, "secret1")
		require.NoError(t, err, id)
		claims, err := f.tokens.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, p.Claims(), claims)
	}
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	f := newFixture(t)
	f.users.add(t, "sky", "sky@hub.io", "secret1", model.RoleUser)

	_, wrongPass := f.auth.Login(context.Background(), "sky", "nope")
	_, noUser := f.auth.Login(context.Background(), "ghost", "nope")

	require.Error(t, wrongPass)
	require.Error(t, noUser)
	assert.True(t, apperr.Is(wrongPass, apperr.KindUnauthorized))
	assert.True(t, apperr.Is(noUser, apperr.KindUnauthorized))
	assert.Equal(t, wrongPass.Error(), noUser.Error())
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)
	f.users.add(t, "root", "root@hub.io", "secret1", model.RoleAdmin)
	f.users.add(t, "sky", "sky@hub.io", "secret1", model.RoleUser)
	ctx := context.Background()

	pair, err := f.auth.AdminLogin(ctx, "root", "secret1")
	require.NoError(t, err)
	claims, err := f.tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	_, errNoAdmin := f.auth.AdminLogin(ctx, "sky", "secret1")
	require.Error(t, errNoAdmin)
	assert.True(t, apperr.Is(errNoAdmin, apperr.KindUnauthorized))
	assert.Contains(t, errNoAdmin.Error(), "admin privilege")

	_, errBadPass := f.auth.AdminLogin(ctx, "sky", "wrong")
	require.Error(t, errBadPass)
	assert.NotEqual(t, errNoAdmin.Error(), errBadPass.Error())
}

func TestRegister_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mr.Set("email:code:a@b.com", "123456"))

	var welcome model.EmailJob
	f.jobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(j model.EmailJob) bool {
		return j.Template == model.TemplateRegisterSuccess
	})).Run(func(args mock.Arguments) { welcome = args.Get(1).(model.EmailJob) }).Return("job-w", nil).Once()

	pair, err := f.auth.Register(ctx, RegisterInput{
		Username: "sky", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1", Code: "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, []string{"a@b.com"}, welcome.To)
	assert.Equal(t, "sky", welcome.Context["username"])
	assert.Empty(t, f.storedCode(t, "a@b.com"))
	f.jobs.AssertExpectations(t)

	// Same email again with a fresh code: Conflict from the identity store.
	require.NoError(t, f.mr.Set("email:code:a@b.com", "654321"))
	_, err = f.auth.Register(ctx, RegisterInput{
		Username: "other", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1", Code: "654321",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "654321", f.storedCode(t, "a@b.com"))
}

func TestRegister_BadCodeStopsEarly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set("email:code:a@b.com", "123456"))

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Username: "sky", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1", Code: "000000",
	})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	ok, _ := f.users.ExistsByEmail(context.Background(), "a@b.com")
	assert.False(t, ok)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set("email:code:a@b.com", "123456"))

	_, err := f.auth.Register(context.Background(), RegisterInput{
		Username: "sky", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret2", Code: "123456",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Contains(t, err.Error(), "passwords")
	assert.Equal(t, "123456", f.storedCode(t, "a@b.com"))

	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return("job", nil)
	pair, err := f.auth.Register(context.Background(), RegisterInput{
		Username: "sky", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1", Code: "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Empty(t, f.storedCode(t, "a@b.com"))
}

func TestRegister_WelcomeEmailIsBestEffort(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set("email:code:a@b.com", "123456"))
	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return("", errors.New("broker down"))

	pair, err := f.auth.Register(context.Background(), RegisterInput{
		Username: "sky", Email: "a@b.com", Password: "secret1", ConfirmPassword: "secret1", Code: "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.Issue(model.Claims{Sub: 3, Username: "sky", Email: "sky@hub.io", Role: model.RoleUser})
	require.NoError(t, err)

	next, err := f.auth.RefreshToken(" " + pair.RefreshToken + " ")
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	assert.Equal(t, pair.ExpiresIn, next.ExpiresIn)

	_, err = f.auth.RefreshToken("garbage")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
