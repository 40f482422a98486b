package handler

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"github.com/skyhub/auth-service/internal/apperr"
	"github.com/skyhub/auth-service/internal/middleware"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/service"
)

// Authenticator is the slice of service.AuthService the handlers use.
type Authenticator interface {
	Login(ctx context.Context, usernameOrEmail, password string) (model.TokenPair, error)
	AdminLogin(ctx context.Context, usernameOrEmail, password string) (model.TokenPair, error)
	Register(ctx context.Context, in service.RegisterInput) (model.TokenPair, error)
	RefreshToken(refreshToken string) (model.TokenPair, error)
}

// CodeVerifier is the slice of service.VerificationService the handlers use.
type CodeVerifier interface {
	SendCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (bool, error)
}

// AuthHandler serves the /auth and /admin/auth endpoints.
type AuthHandler struct {
	Auth  Authenticator
	Codes CodeVerifier
}

func NewAuthHandler(auth Authenticator, codes CodeVerifier) *AuthHandler {
	return &AuthHandler{Auth: auth, Codes: codes}
}

// ----- DTOs -----

type sendCodeReq struct {
	Email string `json:"email"`
}

func (r sendCodeReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type verifyCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r verifyCodeReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

type registerReq struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Code            string `json:"code"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, is.Email, validation.Length(0, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.ConfirmPassword, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.Code, validation.Required),
	)
}

type loginReq struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UsernameOrEmail, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ----- endpoints -----

// SendCode: POST /auth/send-code
func (h *AuthHandler) SendCode(c echo.Context) error {
	var req sendCodeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Codes.SendCode(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return ok(c, "verification code sent", true)
}

// VerifyCode: POST /auth/verify-code. A successful check consumes the code.
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	valid, err := h.Codes.VerifyCode(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return ok(c, "verification code accepted", valid)
}

// Register: POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Username:        strings.TrimSpace(req.Username),
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Code:            req.Code,
	})
	if err != nil {
		return err
	}
	return ok(c, "registration successful", pair)
}

// Login: POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Auth.Login(c.Request().Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return err
	}
	return ok(c, "login successful", pair)
}

// AdminLogin: POST /admin/auth/login
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Auth.AdminLogin(c.Request().Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return err
	}
	return ok(c, "login successful", pair)
}

// Refresh: POST /auth/refresh, /auth/refresh-token and /admin/auth/refresh
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Auth.RefreshToken(req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, "token refreshed", pair)
}

// Me returns the principal snapshot carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	p, found := middleware.PrincipalFrom(c)
	if !found {
		return apperr.Unauthorized("not authenticated")
	}
	return ok(c, "ok", p)
}

// Profile returns the stored principal record. Role-guarded routes carry
// the record the guard loaded, so no second lookup happens here.
func (h *AuthHandler) Profile(c echo.Context) error {
	p, found := middleware.PrincipalFrom(c)
	if !found {
		return apperr.Unauthorized("not authenticated")
	}
	return ok(c, "ok", p)
}
