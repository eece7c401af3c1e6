package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	require.NotEqual(t, http.StatusOK, second.Code)
}

func TestJWTVerifierNilDisablesAuth(t *testing.T) {
	var verifier *JWTVerifier
	called := false
	handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, called)
}

func TestJWTVerifierRejectsMissingToken(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"), "governd", 0)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	w := httptest.NewRecorder()
	verifier.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run without a token")
	})).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code) // errors are JSON-RPC, not HTTP status
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	secret := []byte("secret")
	verifier := NewJWTVerifier(secret, "governd", 0)
	claims := jwt.RegisteredClaims{Issuer: "governd", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	called := false
	verifier.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})).ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, called)
}
