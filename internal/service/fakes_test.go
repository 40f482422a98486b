package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/logger"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/repository"
	"github.com/skyhub/auth-service/internal/utils"
)

// memUsers is an in-memory IdentityStore.
type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Principal
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uint64]model.Principal{}}
}

func (m *memUsers) add(t *testing.T, username, email, password string, role model.Role) model.Principal {
	t.Helper()
	p, err := m.Create(context.Background(), model.NewPrincipal{Username: username, Email: email, Password: password, Role: role})
	if err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	return p
}

func (m *memUsers) Create(_ context.Context, in model.NewPrincipal) (model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	for _, p := range m.byID {
		if p.Username == in.Username {
			return model.Principal{}, &repository.ConflictError{Field: "username"}
		}
		if p.Email == email {
			return model.Principal{}, &repository.ConflictError{Field: "email"}
		}
	}
	hash, err := utils.HashPassword(in.Password, 4)
	if err != nil {
		return model.Principal{}, err
	}
	m.nextID++
	p := model.Principal{ID: m.nextID, Username: in.Username, Email: email, Role: in.Role, PasswordHash: hash, CreatedAt: time.Now()}
	if p.Role == "" {
		p.Role = model.RoleUser
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *memUsers) FindByID(_ context.Context, id uint64) (model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memUsers) FindByUsernameOrEmail(_ context.Context, v string) (model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Username == v || p.Email == strings.ToLower(v) {
			return p, nil
		}
	}
	return model.Principal{}, repository.ErrNotFound
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Email == strings.ToLower(email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) VerifyPassword(p model.Principal, plain string) bool {
	return utils.VerifyPassword(p.PasswordHash, plain)
}

// mockEnqueuer records queued jobs.
type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job model.EmailJob) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:     "access-secret",
		AccessExpiresIn:  "5d",
		RefreshSecret:    "refresh-secret",
		RefreshExpiresIn: "7d",
		BcryptCost:       4,
	}
}

func testVerificationConfig() config.VerificationConfig {
	return config.VerificationConfig{CodeTTL: 300 * time.Second, KeyPrefix: "email:code:", Subject: "Your code"}
}

type fixture struct {
	mr     *miniredis.Miniredis
	users  *memUsers
	jobs   *mockEnqueuer
	tokens *TokenService
	codes  *VerificationService
	auth   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{mr: mr, users: newMemUsers(), jobs: &mockEnqueuer{}}
	log := logger.Discard()
	f.tokens = NewTokenService(testAuthConfig())
	f.codes = NewVerificationService(testVerificationConfig(), repository.NewRedisCredentialStore(rdb), f.users, f.jobs, log)
	f.auth = NewAuthService(f.users, f.tokens, f.codes, f.jobs, log)
	return f
}

// storedCode reads the live code for email straight from Redis.
func (f *fixture) storedCode(t *testing.T, email string) string {
	t.Helper()
	v, err := f.mr.Get("email:code:" + email)
	if err != nil {
		return ""
	}
	return v
}
