package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func claimsFor(userID int, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
}

func TestValidateToken(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	claims, err := v.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor(42, time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
}

func TestValidateTokenRejects(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor(1, -time.Minute)), ErrTokenExpired},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), claimsFor(1, time.Hour)), ErrTokenInvalid},
		{"no user", sign(t, jwt.SigningMethodHS256, []byte(testSecret), claimsFor(0, time.Hour)), ErrTokenInvalid},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claimsFor(1, time.Hour)), ErrTokenInvalid},
		{"garbage", "not.a.token", ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
