package model

// Claims is the denormalized principal snapshot signed into both tokens.
// It never carries exp/iat; those belong to the signing step.
type Claims struct {
	Sub      uint64 `json:"sub"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role,omitempty"`
}

// TokenPair is what login, register and refresh return. ExpiresIn is the
// access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}
