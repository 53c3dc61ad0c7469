package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gadgetswap/backend/internal/marketplace"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = time.Hour
)

var (
	errMissingSigningSecret = errors.New("auth: signing secret must be provided")
	errMissingSubjectClaim  = errors.New("auth: subject claim must be provided")

	// ErrInvalidToken covers malformed, expired, and mis-signed tokens.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Identity is the authenticated caller, resolved once per request.
type Identity struct {
	Email string
	Role  marketplace.Role
}

type sessionClaims struct {
	// Data carries the email under the claim name the frontend's existing
	// tokens use.
	Data string `json:"data"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the session JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer mints and verifies the session tokens carried in the
// HTTP-only cookie.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueToken produces a signed session JWT for the identity and returns the
// token plus its validity in seconds.
func (i *TokenIssuer) IssueToken(identity Identity) (string, int64, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if identity.Email == "" {
		return "", 0, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	claims := sessionClaims{
		Data: identity.Email,
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Email,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// Verify ensures the session JWT is well formed and returns the caller
// identity it asserts.
func (i *TokenIssuer) Verify(tokenString string) (Identity, error) {
	if len(i.config.SigningSecret) == 0 {
		return Identity{}, errMissingSigningSecret
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email := claims.Data
	if email == "" {
		email = claims.Subject
	}
	if email == "" {
		return Identity{}, errMissingSubjectClaim
	}

	return Identity{Email: email, Role: marketplace.ParseRole(claims.Role)}, nil
}
