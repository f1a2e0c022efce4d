package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Secret: "too short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestSignURLAppendsToken(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	signed, err := svc.SignURL("http://127.0.0.1:8080/broadcast/42")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("token"))
	assert.True(t, strings.HasPrefix(signed, "http://127.0.0.1:8080/broadcast/42?"))
}

func TestVerifySignedURL(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	signed, err := svc.SignURL("http://127.0.0.1:8080/broadcast/42")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.NoError(t, svc.Verify(u.Query().Get("token"), "/broadcast/42"))
}

func TestVerifyRejectsWrongPath(t *testing.T) {
	// A token signed for one broadcast must not authorize another.
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	signed, err := svc.SignURL("http://127.0.0.1:8080/broadcast/42")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.Error(t, svc.Verify(u.Query().Get("token"), "/broadcast/43"))
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Verify("", "/broadcast/42"), ErrMissingToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, TokenTTL: -time.Minute})
	require.NoError(t, err)

	signed, err := svc.SignURL("http://127.0.0.1:8080/broadcast/42")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Verify(u.Query().Get("token"), "/broadcast/42"), ErrExpiredToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	verifier, err := NewTokenService(TokenConfig{Secret: strings.Repeat("x", 32)})
	require.NoError(t, err)

	signed, err := signer.SignURL("http://127.0.0.1:8080/broadcast/42")
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)

	assert.Error(t, verifier.Verify(u.Query().Get("token"), "/broadcast/42"))
}

func TestMiddleware(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("signed request passes", func(t *testing.T) {
		signed, err := svc.SignURL("http://example.com/broadcast/1")
		require.NoError(t, err)
		u, err := url.Parse(signed)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.Path+"?"+u.RawQuery, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unsigned request rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broadcast/1", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestDisabled(t *testing.T) {
	var secctx SecurityContext = Disabled{}

	assert.False(t, secctx.Enabled())

	signed, err := secctx.SignURL("http://example.com/broadcast/1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/broadcast/1", signed)
}
