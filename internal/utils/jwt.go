package utils // package utils provides helpers for token signing, hashing and codes

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skyhub/auth-service/internal/model"
)

var (
	// ErrTokenExpired is returned when the signature is valid but exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong algorithms.
	ErrTokenInvalid = errors.New("token invalid")
)

// signedClaims is the JWT body: the principal snapshot plus registered
// claims added at signing time.
type signedClaims struct {
	model.Claims
	ID        string           `json:"jti,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
}

func (c signedClaims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c signedClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c signedClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c signedClaims) GetIssuer() (string, error)                   { return "", nil }
func (c signedClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }
func (c signedClaims) GetSubject() (string, error) {
	return strconv.FormatUint(c.Sub, 10), nil
}

// SignHS256 signs claims with secret and an expiry ttl from now. Each token
// gets a random jti so two tokens minted in the same second still differ.
func SignHS256(secret string, claims model.Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	sc := signedClaims{
		Claims:    claims,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString([]byte(secret))
}

// ParseHS256 verifies raw against secret and returns the principal snapshot
// with exp/iat/jti stripped. Errors are ErrTokenExpired or ErrTokenInvalid.
func ParseHS256(secret, raw string) (model.Claims, error) {
	var sc signedClaims
	tok, err := jwt.ParseWithClaims(raw, &sc, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		// Expiry is only reported for tokens whose signature checked out.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return model.Claims{}, ErrTokenExpired
		}
		return model.Claims{}, ErrTokenInvalid
	}
	if !tok.Valid || sc.Sub == 0 {
		return model.Claims{}, ErrTokenInvalid
	}
	return sc.Claims, nil
}
