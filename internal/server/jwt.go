// Package server provides the HTTP API for the career coaching tools.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/config"
	"github.com/jonathan/career-coach/internal/server/middleware"
)

// clockSkew is the leeway allowed on exp and nbf, and on the issued-at age check.
const clockSkew = 30 * time.Second

// Claims are the bearer token claims the API reads. Tokens are issued by the
// identity provider; this service only verifies them.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GetUserID returns the user_id claim, or the subject when only "sub" is set.
func (c *Claims) GetUserID() uuid.UUID {
	if c.UserID != uuid.Nil {
		return c.UserID
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// JWTVerifier checks HS256 bearer tokens signed with a shared secret.
// It implements middleware.TokenValidator.
type JWTVerifier struct {
	secret []byte
	maxAge time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

var _ middleware.TokenValidator = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier. cfg.ExpirationHours caps how long after
// issue a token is accepted, whatever its own exp says.
func NewJWTVerifier(cfg *config.JWTConfig) *JWTVerifier {
	v := &JWTVerifier{
		secret: []byte(cfg.Secret),
		maxAge: time.Duration(cfg.ExpirationHours) * time.Hour,
		now:    time.Now,
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v
}

// Verify parses tokenString and returns its claims.
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("empty bearer token")
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, fmt.Errorf("invalid token signature: %w", err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, fmt.Errorf("token missing required claim: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed token: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if v.maxAge > 0 && claims.IssuedAt != nil && v.now().Sub(claims.IssuedAt.Time) > v.maxAge+clockSkew {
		return nil, fmt.Errorf("token issued more than %s ago", v.maxAge)
	}
	if claims.GetUserID() == uuid.Nil {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// ValidateToken implements middleware.TokenValidator.
func (v *JWTVerifier) ValidateToken(_ context.Context, tokenString string) (middleware.UserIDGetter, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
