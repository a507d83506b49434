package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harun/beacon/pkg/location"
)

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = time.Hour

// Claims is what a verified token asserts
type Claims struct {
	Subject   location.Identity
	Email     string
	ExpiresAt time.Time
}

// TokenVerifier resolves a bearer token to an identity
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// JWTManager issues and verifies HS256 tokens
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager creates a manager. ttl <= 0 uses DefaultTokenTTL.
func NewJWTManager(secret []byte, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTManager{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Generate signs a token for id
func (m *JWTManager) Generate(id location.Identity, email string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub": id.String(),
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and extracts the subject. Tokens minted
// by older deployments carry the identity in a numeric "id" claim instead
// of "sub"; both are accepted.
func (m *JWTManager) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	subject := subjectOf(mc)
	if subject == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	claims := Claims{Subject: subject}
	claims.Email, _ = mc["email"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

func subjectOf(mc jwt.MapClaims) location.Identity {
	if sub, ok := mc["sub"].(string); ok && sub != "" {
		return location.Identity(sub)
	}
	switch id := mc["id"].(type) {
	case string:
		return location.Identity(id)
	case float64:
		return location.Identity(strconv.FormatFloat(id, 'f', -1, 64))
	}
	return ""
}

var _ TokenVerifier = (*JWTManager)(nil)
