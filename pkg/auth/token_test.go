package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/beacon/pkg/location"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager([]byte("test-secret"), time.Hour)

	token, err := m.Generate("user-1", "a@example.com")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, location.Identity("user-1"), claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestJWTManager_Verify(t *testing.T) {
	secret := []byte("test-secret")
	m := NewJWTManager(secret, time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager([]byte("other"), time.Hour)
		token, err := other.Generate("user-1", "")
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, ErrAuthFailure)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewJWTManager(secret, time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.Generate("user-1", "")
		require.NoError(t, err)

		_, err = m.Verify(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
		assert.ErrorIs(t, err, ErrAuthFailure)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("legacy numeric id claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"id":    7,
			"email": "legacy@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		claims, err := m.Verify(signed)
		require.NoError(t, err)
		assert.Equal(t, location.Identity("7"), claims.Subject)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, err = m.Verify(signed)
		assert.ErrorIs(t, err, ErrMissingClaim)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, err = m.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
