package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/queue"
	"github.com/skyhub/auth-service/internal/repository"
	"github.com/skyhub/auth-service/internal/utils"
)

// IdentityStore is the persisted principal boundary. *repository.UserRepo
// satisfies it.
type IdentityStore interface {
	EmailChecker
	Create(ctx context.Context, in model.NewPrincipal) (model.Principal, error)
	FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (model.Principal, error)
	VerifyPassword(p model.Principal, plain string) bool
}

// RegisterInput is a self-service registration request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Code            string
}

// WelcomeSubject is the subject of the post-registration email.
const WelcomeSubject = "Welcome aboard"

const (
	msgBadCredentials = "invalid username or password"
	msgNoAdmin        = "this account has no admin privilege"
)

// AuthService orchestrates login, registration and refresh.
type AuthService struct {
	users  IdentityStore
	tokens *TokenService
	codes  *VerificationService
	jobs   queue.Enqueuer
	log    logrus.FieldLogger
	m      *metrics.Metrics
}

func NewAuthService(users IdentityStore, tokens *TokenService, codes *VerificationService, jobs queue.Enqueuer, log logrus.FieldLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, codes: codes, jobs: jobs, log: log}
}

// WithMetrics records login outcomes on m.
func (s *AuthService) WithMetrics(m *metrics.Metrics) *AuthService {
	s.m = m
	return s
}

// Login authenticates by username or email. A missing principal and a
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (model.TokenPair, error) {
	p, err := s.authenticate(ctx, usernameOrEmail, password)
	s.m.Login("user", err == nil)
	if err != nil {
		return model.TokenPair{}, err
	}
	return s.tokens.Issue(p.Claims())
}

// AdminLogin is Login restricted to admin principals. The role is checked
// after the password so the privilege message never reveals an account.
func (s *AuthService) AdminLogin(ctx context.Context, usernameOrEmail, password string) (model.TokenPair, error) {
	p, err := s.authenticate(ctx, usernameOrEmail, password)
	if err == nil && !p.IsAdmin() {
		err = apperr.Unauthorized(msgNoAdmin)
		s.log.WithField("user_id", p.ID).Warn("admin login refused")
	}
	s.m.Login("admin", err == nil)
	if err != nil {
		return model.TokenPair{}, err
	}
	return s.tokens.Issue(p.Claims())
}

func (s *AuthService) authenticate(ctx context.Context, usernameOrEmail, password string) (model.Principal, error) {
	p, err := s.users.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if errors.Is(err, repository.ErrNotFound) {
		utils.BurnPasswordCheck(password)
		return model.Principal{}, apperr.Unauthorized(msgBadCredentials)
	}
	if err != nil {
		return model.Principal{}, apperr.Internal("load principal failed", err)
	}
	if !s.users.VerifyPassword(p, password) {
		return model.Principal{}, apperr.Unauthorized(msgBadCredentials)
	}
	return p, nil
}

// Register checks the email code, creates the principal and signs it in.
// The code is only deleted once the principal exists, so a rejected
// request can be retried with the same code. The unique email key keeps
// a code from registering twice. The welcome email is best effort and
// never fails the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.TokenPair, error) {
	if _, err := s.codes.CheckCode(ctx, in.Email, in.Code); err != nil {
		return model.TokenPair{}, err
	}
	if in.Password != in.ConfirmPassword {
		return model.TokenPair{}, apperr.BadRequest("passwords do not match")
	}

	p, err := s.users.Create(ctx, model.NewPrincipal{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Role:     model.RoleUser,
	})
	if err != nil {
		var ce *repository.ConflictError
		if errors.As(err, &ce) {
			return model.TokenPair{}, apperr.Conflict(ce.Error())
		}
		return model.TokenPair{}, apperr.Internal("create principal failed", err)
	}

	pair, err := s.tokens.Issue(p.Claims())
	if err != nil {
		return model.TokenPair{}, err
	}

	log := s.log.WithFields(logrus.Fields{"user_id": p.ID, "email": p.Email})
	if _, err := s.jobs.Enqueue(ctx, model.EmailJob{
		To:       []string{p.Email},
		Subject:  WelcomeSubject,
		Template: model.TemplateRegisterSuccess,
		Context:  map[string]any{"username": p.Username},
	}); err != nil {
		log.WithError(err).Warn("enqueue welcome email failed")
	}
	if err := s.codes.DeleteCode(ctx, p.Email); err != nil {
		log.WithError(err).Warn("delete verification code failed")
	}
	log.Info("principal registered")
	return pair, nil
}

// RefreshToken rotates a token pair.
func (s *AuthService) RefreshToken(refreshToken string) (model.TokenPair, error) {
	return s.tokens.Refresh(strings.TrimSpace(refreshToken))
}
