// Package token issues and verifies the signed access tokens that carry an
// actor's identity between requests. Tokens are HS256 JWTs; the claims are the
// only place identity crosses a request boundary.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Claims is the token payload: the actor, their fixed role, and their site
// assignment ("" for global actors).
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Site     string `json:"site,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies access tokens.
type Service struct {
	signingKey []byte
	ttl        time.Duration
}

func NewService(signingKey []byte, ttl time.Duration) *Service {
	return &Service{signingKey: signingKey, ttl: ttl}
}

// Issue signs a token for the actor.
func (s *Service) Issue(username string, role id.Role, site id.SiteCode, now time.Time) (string, error) {
	claims := Claims{
		Username: username,
		Role:     string(role),
		Site:     string(site),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Verify parses and validates a token, returning its claims. Expired,
// malformed, and wrongly signed tokens all fail with an unauthenticated
// error; callers get no detail to probe with.
func (s *Service) Verify(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	})
	if err != nil || !tok.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid or expired token")
	}
	return &claims, nil
}
