// Package auth verifies the bearer tokens that identify callers. Tokens are
// HS256 JWTs whose subject is the caller's user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens with a bad signature, an expired
	// lifetime or no subject.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("authorization token required")
)

// JWTManager verifies caller tokens and signs them for the same secret.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTManager creates a manager for secret. Signed tokens expire after ttl.
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{
		key: []byte(secret),
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Validate checks token and returns the user id in its subject.
func (m *JWTManager) Validate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := m.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Generate signs a token for userID.
func (m *JWTManager) Generate(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})

	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
