package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key-for-testing-purposes", time.Hour)
}

func TestJWTService_GenerateToken(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateToken("user-123", "test@example.com", "customer")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
	assert.Equal(t, time.Hour, service.Expiry())
}

func TestJWTService_ValidateToken_Valid(t *testing.T) {
	service := newTestJWTService()

	token, _, err := service.GenerateToken("user-456", "admin@example.com", "admin")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "user-456", claims.Subject)
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := newTestJWTService()
	issued := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, _, err := service.GenerateToken("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	claims, err := service.ValidateToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateToken_Invalid(t *testing.T) {
	service := newTestJWTService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_ValidateToken_WrongSignature(t *testing.T) {
	issuer := NewJWTService("secret-key-1", time.Hour)
	verifier := NewJWTService("secret-key-2", time.Hour)

	token, _, err := issuer.GenerateToken("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateToken_NoneAlgorithm(t *testing.T) {
	service := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-123", Role: "admin"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.ValidateToken(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenExpiry(t *testing.T) {
	service := newTestJWTService()
	token, expiresAt, err := service.GenerateToken("user-1", "a@example.com", "customer")
	require.NoError(t, err)

	exp, err := TokenExpiry(token)

	require.NoError(t, err)
	assert.Equal(t, expiresAt.Unix(), exp.Unix())
}

func TestTokenExpiry_OpaqueToken(t *testing.T) {
	_, err := TokenExpiry("opaque-session-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiry_NoExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"})
	tokenString, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = TokenExpiry(tokenString)
	assert.ErrorIs(t, err, ErrNoExpiry)
}

func TestTokenExpired(t *testing.T) {
	service := newTestJWTService()
	token, expiresAt, err := service.GenerateToken("user-1", "a@example.com", "customer")
	require.NoError(t, err)

	assert.False(t, TokenExpired(token, expiresAt.Add(-time.Minute)))
	assert.True(t, TokenExpired(token, expiresAt.Add(time.Second)))
	assert.False(t, TokenExpired("opaque", time.Now().Add(100*time.Hour)))
}
