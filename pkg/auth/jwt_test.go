package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-secret"

func TestJWTService_RoundTrip(t *testing.T) {
	// Arrange
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)

	// Act
	token, expires, err := svc.GenerateToken("admin")
	require.NoError(t, err)
	claims, err := svc.ParseToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)
}

func TestJWTService_Expired(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Minute)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateToken("admin")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(testSecret, time.Hour)
	require.NoError(t, err)
	other, err := NewJWTService("another-secret-0123456789", time.Hour)
	require.NoError(t, err)

	foreign, _, err := other.GenerateToken("admin")
	require.NoError(t, err)
	_, err = svc.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrTokenInvalid, "токен с чужой подписью должен отклоняться")

	_, err = svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Audience:  jwt.ClaimStrings{audience},
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ParseToken(noRole)
	assert.ErrorIs(t, err, ErrTokenInvalid, "токен без роли admin должен отклоняться")
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", time.Hour)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrBadPassword)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrBadPassword)
}
