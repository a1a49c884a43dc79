package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/config"
)

const secret = "test-secret-with-enough-entropy"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestValidateAccessToken(t *testing.T) {
	svc := NewService(&config.Config{JWTSecret: secret})
	userID := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("user token", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": userID.String(), "email": "ana@example.com", "role": "authenticated", "exp": exp,
		})
		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "ana@example.com", claims.Email)
		assert.False(t, claims.IsService())
	})

	t.Run("service token without subject", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"role": RoleService, "exp": exp})
		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.True(t, claims.IsService())
	})

	tests := []struct {
		name   string
		claims jwt.MapClaims
		key    []byte
	}{
		{name: "expired", claims: jwt.MapClaims{"sub": userID.String(), "exp": time.Now().Add(-time.Minute).Unix()}, key: []byte(secret)},
		{name: "no expiry", claims: jwt.MapClaims{"sub": userID.String()}, key: []byte(secret)},
		{name: "wrong key", claims: jwt.MapClaims{"sub": userID.String(), "exp": exp}, key: []byte("other")},
		{name: "subject not a uuid", claims: jwt.MapClaims{"sub": "ana", "exp": exp}, key: []byte(secret)},
		{name: "no subject", claims: jwt.MapClaims{"role": "authenticated", "exp": exp}, key: []byte(secret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(sign(t, jwt.SigningMethodHS256, tt.key, tt.claims))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewService(&config.Config{}).ValidateAccessToken("x")
		assert.ErrorIs(t, err, ErrMissingKey)
	})
}
