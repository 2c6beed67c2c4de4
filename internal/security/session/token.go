package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
)

const tokenIssuer = "sentra"

// TokenClaims is the signed form of a session handed to HTTP clients. The
// session id is the subject; the server-side session record remains the
// source of truth for activity and lockout state.
type TokenClaims struct {
	PrincipalID string `json:"principal_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session bearer tokens with HS256.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an issuer from the configured signing key.
func NewTokenIssuer(key string, ttl time.Duration) (*TokenIssuer, error) {
	if key == "" {
		return nil, errors.ErrInvalidConfig("session token key is required")
	}
	if ttl <= 0 {
		ttl = constants.DefaultSessionTokenTTL
	}
	return &TokenIssuer{key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the session. The token expiry is the earlier of the
// session expiry and the issuer TTL.
func (t *TokenIssuer) Issue(s *models.Session) (string, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	if s.ExpiresAt.Before(expires) {
		expires = s.ExpiresAt
	}

	claims := TokenClaims{
		PrincipalID: s.PrincipalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	if err != nil {
		return nil, errors.ErrInvalidRequest("invalid session token").WithCause(err)
	}
	if !parsed.Valid {
		return nil, errors.ErrInvalidRequest("invalid session token")
	}
	return claims, nil
}
