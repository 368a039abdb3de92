package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yallaspeak/syncd/internal/server/handlers"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func signTestToken(t *testing.T, secret []byte, claims handlers.OwnerClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

// ownerCheckHandler is a simple handler that checks context values
func ownerCheckHandler(t *testing.T, expectedOwnerID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := handlers.GetOwnerID(r.Context())
		require.True(t, ok, "owner_id should be in context")
		assert.Equal(t, expectedOwnerID, ownerID)

		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	tokenString := signTestToken(t, jwtConfig.Secret, handlers.OwnerClaims{
		OwnerID: "owner-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(ownerCheckHandler(t, "owner-123"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_SubjectFallback(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	// Токен без owner_id claim, только со стандартным sub
	tokenString := signTestToken(t, jwtConfig.Secret, handlers.OwnerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-from-sub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	})

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(ownerCheckHandler(t, "owner-from-sub"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_InvalidFormat(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no bearer prefix", header: "some-token"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := AuthMiddleware(logger, jwtConfig)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	// Токен подписан другим секретом
	tokenString := signTestToken(t, []byte("wrong-secret"), handlers.OwnerClaims{
		OwnerID: "owner-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	})

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	tokenString := signTestToken(t, jwtConfig.Secret, handlers.OwnerClaims{
		OwnerID: "owner-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	})

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_NoOwnerIdentity(t *testing.T) {
	logger := setupTestLogger()
	jwtConfig := handlers.JWTConfig{Secret: []byte("test-secret-key")}

	// Валидная подпись, но нет ни owner_id, ни sub
	tokenString := signTestToken(t, jwtConfig.Secret, handlers.OwnerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	})

	mw := AuthMiddleware(logger, jwtConfig)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
