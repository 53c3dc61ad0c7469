package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
)

// SessionValidator resolves the caller identity from the session cookie on
// incoming requests.
type SessionValidator struct {
	issuer     *TokenIssuer
	cookieName string
}

// NewSessionValidator constructs a validator reading the named cookie.
func NewSessionValidator(issuer *TokenIssuer, cookieName string) (*SessionValidator, error) {
	name := strings.TrimSpace(cookieName)
	if name == "" {
		return nil, ErrMissingSessionCookieName
	}
	return &SessionValidator{issuer: issuer, cookieName: name}, nil
}

// CookieName returns the cookie name configured for session lookups.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken validates the supplied JWT string and returns the identity.
func (v *SessionValidator) ValidateToken(tokenString string) (Identity, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Identity{}, ErrMissingSessionToken
	}
	return v.issuer.Verify(token)
}

// ValidateRequest extracts the configured cookie from the request and
// validates it.
func (v *SessionValidator) ValidateRequest(r *http.Request) (Identity, error) {
	if r == nil {
		return Identity{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || cookie == nil {
		return Identity{}, ErrMissingSessionToken
	}
	return v.ValidateToken(cookie.Value)
}
