package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shopsense/internal/config"
	"github.com/temcen/shopsense/pkg/models"
)

func newTestAuth(secret string, ttl time.Duration) *AuthService {
	return NewAuthService(&config.AuthConfig{JWTSecret: secret, TokenTTL: ttl}, testLogger())
}

func TestAuthService_RoundTrip(t *testing.T) {
	auth := newTestAuth("test-secret", time.Hour)
	require.True(t, auth.Enabled())

	token, err := auth.GenerateToken("ops", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

func TestAuthService_Disabled(t *testing.T) {
	auth := newTestAuth("", time.Hour)
	assert.False(t, auth.Enabled())

	_, err := auth.GenerateToken("ops", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrAuthDisabled)
	_, err = auth.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestAuthService_Rejects(t *testing.T) {
	auth := newTestAuth("test-secret", time.Hour)

	otherSecret, err := newTestAuth("other-secret", time.Hour).GenerateToken("ops", models.RoleAdmin)
	require.NoError(t, err)

	expired, err := newTestAuth("test-secret", -time.Minute).GenerateToken("ops", models.RoleAdmin)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	foreignIssuer, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret":   otherSecret,
		"expired":        expired,
		"foreign issuer": foreignIssuer,
		"alg none":       unsigned,
		"garbage":        "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
