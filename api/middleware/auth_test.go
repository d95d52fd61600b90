package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/davidnajera/mentiondesk-backend/pkg/auth"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, Issuer: "mentiondesk"}
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return Auth(testJWT(), nil)(next)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := protected(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/mentions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	handler := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/mentions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSeedsActor(t *testing.T) {
	token, err := pkgAuth.MintAccessToken(testJWT(), types.Actor{ID: 9, Email: "op@example.com"})
	require.NoError(t, err)

	var seen *types.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := ActorFromContext(r.Context()); ok {
			seen = &actor
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(testJWT(), nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/mentions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(9), seen.ID)
	assert.Equal(t, "op@example.com", seen.Email)
}
