package service

import (
	"errors"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/utils"
)

// TokenService issues and verifies the access/refresh pair. Access and
// refresh tokens use distinct secrets and lifetimes from config.AuthConfig.
type TokenService struct {
	cfg config.AuthConfig
}

func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{cfg: cfg}
}

// Issue signs a new pair from claims. Role is normalized to "user" when the
// caller left it empty so every token carries one.
func (s *TokenService) Issue(claims model.Claims) (model.TokenPair, error) {
	if claims.Role == "" {
		claims.Role = model.RoleUser
	}
	access, err := utils.SignHS256(s.cfg.AccessSecret, claims, utils.ExpiresIn(s.cfg.AccessExpiresIn))
	if err != nil {
		return model.TokenPair{}, apperr.Internal("issue access token failed", err)
	}
	refresh, err := utils.SignHS256(s.cfg.RefreshSecret, claims, utils.ExpiresIn(s.cfg.RefreshExpiresIn))
	if err != nil {
		return model.TokenPair{}, apperr.Internal("issue refresh token failed", err)
	}
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    utils.ExpiresInSeconds(s.cfg.AccessExpiresIn),
	}, nil
}

// Verify checks token against secret. An expired but otherwise valid token
// yields TokenExpired; anything else yields Unauthorized.
func (s *TokenService) Verify(token, secret string) (model.Claims, error) {
	claims, err := utils.ParseHS256(secret, token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, utils.ErrTokenExpired):
		return model.Claims{}, apperr.TokenExpired("token expired")
	default:
		return model.Claims{}, apperr.Unauthorized("invalid token")
	}
}

// VerifyAccess verifies an access token.
func (s *TokenService) VerifyAccess(token string) (model.Claims, error) {
	return s.Verify(token, s.cfg.AccessSecret)
}

// Refresh exchanges a valid refresh token for a new pair built from the same
// principal snapshot. Both tokens rotate; the old refresh token stays valid
// until its own expiry since nothing is tracked server side.
func (s *TokenService) Refresh(refreshToken string) (model.TokenPair, error) {
	claims, err := utils.ParseHS256(s.cfg.RefreshSecret, refreshToken)
	if err != nil {
		return model.TokenPair{}, apperr.Unauthorized("invalid or expired refresh token")
	}
	return s.Issue(claims)
}
