package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *AADTokenSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source := NewAADTokenSource("tenant-id", "client-id", "client-secret", "api://edms/.default", time.Hour)
	source.SetTokenURL(server.URL)
	return source
}

func TestAADTokenSource_ClientCredentialsGrant(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "client-secret", r.Form.Get("client_secret"))
		assert.Equal(t, "api://edms/.default", r.Form.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3599}`))
	})

	result, err := source.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "provider-token", result.AccessToken)
	assert.WithinDuration(t, time.Now().Add(3599*time.Second), result.ExpiresAt, 5*time.Second)
}

func TestAADTokenSource_ExpiryFromJWTClaim(t *testing.T) {
	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// No expires_in: the exp claim should win over the assumed lifetime.
		w.Write([]byte(`{"access_token":"` + token + `","token_type":"Bearer"}`))
	})

	result, err := source.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), result.ExpiresAt.Unix())
}

func TestAADTokenSource_AssumedLifetimeFallback(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"opaque-token","token_type":"Bearer"}`))
	})

	result, err := source.Acquire(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)
}

func TestAADTokenSource_ProviderError(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	})

	_, err := source.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestAADTokenSource_EmptyTokenRejected(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	})

	_, err := source.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty token")
}
