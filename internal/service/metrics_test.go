package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_RecordsCodesAndLogins(t *testing.T) {
	f := newFixture(t)
	m := metrics.New()
	f.codes.WithMetrics(m)
	f.auth.WithMetrics(m)
	ctx := context.Background()

	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return("job", nil)
	f.codes.newCode = func() (string, error) { return "123456", nil }
	require.NoError(t, f.codes.SendCode(ctx, "a@b.com"))
	_, _ = f.codes.VerifyCode(ctx, "a@b.com", "000000")
	_, err := f.codes.VerifyCode(ctx, "a@b.com", "123456")
	require.NoError(t, err)
	_, _ = f.codes.VerifyCode(ctx, "a@b.com", "123456")

	f.users.add(t, "sky", "sky@hub.io", "secret1", model.RoleUser)
	_, err = f.auth.Login(ctx, "sky", "secret1")
	require.NoError(t, err)
	_, _ = f.auth.AdminLogin(ctx, "sky", "secret1")

	body := scrape(t, m)
	assert.Contains(t, body, "auth_verification_codes_sent_total 1")
	assert.Contains(t, body, `auth_verification_checks_total{outcome="incorrect"} 1`)
	assert.Contains(t, body, `auth_verification_checks_total{outcome="accepted"} 1`)
	assert.Contains(t, body, `auth_verification_checks_total{outcome="absent"} 1`)
	assert.Contains(t, body, `auth_logins_total{kind="user",outcome="success"} 1`)
	assert.Contains(t, body, `auth_logins_total{kind="admin",outcome="failure"} 1`)
}
