package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/queue"
	"github.com/skyhub/auth-service/internal/repository"
	"github.com/skyhub/auth-service/internal/utils"
)

// EmailChecker reports whether an email already belongs to a principal.
type EmailChecker interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// VerificationService issues and checks one-time email codes. At most one
// code is live per email; a new code replaces the previous one.
type VerificationService struct {
	cfg     config.VerificationConfig
	store   repository.CredentialStore
	users   EmailChecker
	jobs    queue.Enqueuer
	log     logrus.FieldLogger
	m       *metrics.Metrics
	newCode func() (string, error)
}

func NewVerificationService(cfg config.VerificationConfig, store repository.CredentialStore, users EmailChecker, jobs queue.Enqueuer, log logrus.FieldLogger) *VerificationService {
	return &VerificationService{
		cfg:     cfg,
		store:   store,
		users:   users,
		jobs:    jobs,
		log:     log,
		newCode: utils.NewNumericCode,
	}
}

// WithMetrics records sent codes and check outcomes on m.
func (s *VerificationService) WithMetrics(m *metrics.Metrics) *VerificationService {
	s.m = m
	return s
}

func (s *VerificationService) key(email string) string {
	return s.cfg.KeyPrefix + normalizeEmail(email)
}

// SendCode stores a fresh code for email and queues the code email.
// Registered emails are rejected before anything is stored.
func (s *VerificationService) SendCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return apperr.Internal("check email failed", err)
	}
	if exists {
		return apperr.BadRequest("email is already registered")
	}

	key := s.key(email)
	if err := s.store.Delete(ctx, key); err != nil {
		return apperr.Internal("reset verification code failed", err)
	}
	code, err := s.newCode()
	if err != nil {
		return apperr.Internal("generate verification code failed", err)
	}
	if err := s.store.Set(ctx, key, code, s.cfg.CodeTTL); err != nil {
		return apperr.Internal("store verification code failed", err)
	}

	jobID, err := s.jobs.Enqueue(ctx, model.EmailJob{
		To:       []string{email},
		Subject:  s.cfg.Subject,
		Template: model.TemplateValidateCode,
		Context: map[string]any{
			"code":       code,
			"username":   localPart(email),
			"expireTime": ttlMinutes(s.cfg.CodeTTL),
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("enqueue verification email failed")
		return apperr.Internal("send verification code failed", err)
	}
	s.m.CodeSent()
	s.log.WithFields(logrus.Fields{"email": email, "job_id": jobID}).Info("verification code queued")
	s.log.WithFields(logrus.Fields{"email": email, "code": code}).Debug("verification code issued")
	return nil
}

// VerifyCode consumes the stored code when it matches. A wrong code leaves
// the stored one in place; a consumed code reads the same as an expired one.
func (s *VerificationService) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	matched, present, err := s.store.CompareAndDelete(ctx, s.key(email), strings.TrimSpace(code))
	if err != nil {
		return false, apperr.Internal("check verification code failed", err)
	}
	return s.outcome(matched, present)
}

// CheckCode compares code with the stored one without consuming it. The
// caller deletes the code once it has acted on it.
func (s *VerificationService) CheckCode(ctx context.Context, email, code string) (bool, error) {
	stored, present, err := s.store.Get(ctx, s.key(email))
	if err != nil {
		return false, apperr.Internal("check verification code failed", err)
	}
	return s.outcome(present && stored == strings.TrimSpace(code), present)
}

func (s *VerificationService) outcome(matched, present bool) (bool, error) {
	if !present {
		s.m.CodeCheck("absent")
		return false, apperr.BadRequest("verification code has expired, please request a new one")
	}
	if !matched {
		s.m.CodeCheck("incorrect")
		return false, apperr.BadRequest("verification code is incorrect")
	}
	s.m.CodeCheck("accepted")
	return true, nil
}

// DeleteCode drops any stored code for email. Missing codes are not an error.
func (s *VerificationService) DeleteCode(ctx context.Context, email string) error {
	return s.store.Delete(ctx, s.key(email))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func ttlMinutes(ttl time.Duration) int {
	return int(math.Ceil(ttl.Minutes()))
}
