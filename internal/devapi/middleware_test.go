package devapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key", time.Hour)
}

// captureClaims records the claims the wrapped handler sees
func captureClaims(captured **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			*captured = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["message"]
}

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateToken("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	var claims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&claims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, err := jwtService.GenerateToken("user-456", "cookie@example.com", "admin")
	require.NoError(t, err)

	var claims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&claims)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user-456", claims.UserID)
}

func TestAuthMiddleware_HeaderTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService()
	headerToken, _, _ := jwtService.GenerateToken("header-user", "h@example.com", "customer")
	cookieToken, _, _ := jwtService.GenerateToken("cookie-user", "c@example.com", "customer")

	var claims *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: "token", Value: cookieToken})
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&claims)).ServeHTTP(rec, req)

	require.NotNil(t, claims)
	assert.Equal(t, "header-user", claims.UserID)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	jwtService := newTestJWTService()
	other := auth.NewJWTService("other-secret", time.Hour)
	foreign, _, err := other.GenerateToken("user-1", "x@example.com", "customer")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"no token", "", "Not authorized, no token"},
		{"garbage", "Bearer not-a-jwt", "Not authorized, token failed"},
		{"wrong signature", "Bearer " + foreign, "Not authorized, token failed"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "Not authorized, no token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(jwtService)(next).ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeMessage(t, rec))
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	jwtService := newTestJWTService()
	token, _, _ := jwtService.GenerateToken("user-789", "o@example.com", "customer")

	tests := []struct {
		name       string
		header     string
		wantUserID string
	}{
		{"valid token", "Bearer " + token, "user-789"},
		{"no token", "", ""},
		{"invalid token", "Bearer broken", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *auth.Claims
			req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout-session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			OptionalAuthMiddleware(jwtService)(captureClaims(&claims)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.wantUserID == "" {
				assert.Nil(t, claims)
			} else {
				require.NotNil(t, claims)
				assert.Equal(t, tt.wantUserID, claims.UserID)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *auth.Claims
		wantCode int
	}{
		{"admin allowed", &auth.Claims{UserID: "u1", Role: "admin"}, http.StatusOK},
		{"customer forbidden", &auth.Claims{UserID: "u2", Role: "customer"}, http.StatusForbidden},
		{"no claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), userContextKey, tt.claims))
			}
			rec := httptest.NewRecorder()

			RequireRole("admin")(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestUserIDFrom(t *testing.T) {
	ctx := context.WithValue(context.Background(), userContextKey, &auth.Claims{UserID: "u1"})

	assert.Equal(t, "u1", userIDFrom(ctx))
	assert.Equal(t, "", userIDFrom(context.Background()))
}
