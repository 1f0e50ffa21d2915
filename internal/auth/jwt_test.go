package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "secret", Expiration: time.Hour})

	token, err := svc.GenerateToken("a@b.com", "com.example.facebook")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.AccountName)
	assert.Equal(t, "com.example.facebook", claims.AccountType)
	assert.Equal(t, "a@b.com", claims.Subject)
}

func TestValidateExpired(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "secret", Expiration: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateToken("a@b.com", "t")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := NewJWTService(JWTConfig{Secret: "one", Expiration: time.Hour}).GenerateToken("a@b.com", "t")
	require.NoError(t, err)

	_, err = NewJWTService(JWTConfig{Secret: "two", Expiration: time.Hour}).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "secret", Expiration: time.Hour})
	token, err := svc.GenerateToken("a@b.com", "t")
	require.NoError(t, err)

	var seen string
	handler := svc.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen = claims.AccountName
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", token, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, "a@b.com", seen)
}
