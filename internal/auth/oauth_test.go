package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthenticator points the authenticator at a temp token file and a
// fake token endpoint, and replaces the real browser with opener.
func newTestAuthenticator(t *testing.T, tokenURL string, opener func(string) error) *Authenticator {
	t.Helper()
	a := NewAuthenticator(testLogger(), "test-client-id")
	a.tokenPath = filepath.Join(t.TempDir(), "token.json")
	a.config.Endpoint = oauth2.Endpoint{
		AuthURL:   "https://auth.example.com/authorize",
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	a.openURL = opener
	return a
}

// callbackFor simulates the provider redirect by hitting the loopback
// server with the given state and a fixed code.
func callbackFor(t *testing.T, a *Authenticator, state string) {
	t.Helper()
	go func() {
		resp, err := http.Get(fmt.Sprintf("http://%s%s?code=test-code&state=%s", a.addr, callbackPath, url.QueryEscape(state)))
		if err == nil {
			resp.Body.Close()
		}
	}()
}

func TestSignInExchangesCodeWithProofKey(t *testing.T) {
	var gotGrantType, gotCode, gotVerifier string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrantType = r.Form.Get("grant_type")
		gotCode = r.Form.Get("code")
		gotVerifier = r.Form.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","refresh_token":"refresh","expires_in":3600,"token_type":"Bearer"}`)
	}))
	defer tokenSrv.Close()

	var gotChallenge string
	var a *Authenticator
	a = newTestAuthenticator(t, tokenSrv.URL, func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		gotChallenge = q.Get("code_challenge")
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "test-client-id", q.Get("client_id"))
		assert.Equal(t, "https://www.googleapis.com/auth/calendar.events", q.Get("scope"))
		callbackFor(t, a, q.Get("state"))
		return nil
	})

	token, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)

	assert.Equal(t, "authorization_code", gotGrantType)
	assert.Equal(t, "test-code", gotCode)

	// The verifier sent to the token endpoint must hash to the challenge
	// sent to the authorization endpoint.
	require.NotEmpty(t, gotVerifier)
	sum := sha256.Sum256([]byte(gotVerifier))
	assert.Equal(t, gotChallenge, base64.RawURLEncoding.EncodeToString(sum[:]))

	// The credential is persisted and retrievable.
	stored, ok := a.StoredAccessToken()
	require.True(t, ok)
	assert.Equal(t, "fresh-token", stored)
}

func TestSignInRejectsStateMismatch(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint must not be called on state mismatch")
	}))
	defer tokenSrv.Close()

	var a *Authenticator
	a = newTestAuthenticator(t, tokenSrv.URL, func(authURL string) error {
		callbackFor(t, a, "forged-state")
		return nil
	})

	_, err := a.SignIn(context.Background())
	require.Error(t, err)

	var serr *StateMismatchError
	assert.True(t, errors.As(err, &serr), "expected StateMismatchError, got %T", err)

	// No credential may be stored.
	_, statErr := os.Stat(a.tokenPath)
	assert.True(t, os.IsNotExist(statErr))
	_, ok := a.StoredAccessToken()
	assert.False(t, ok)
}

func TestSignInTimesOut(t *testing.T) {
	a := newTestAuthenticator(t, "http://127.0.0.1:0/token", func(string) error { return nil })
	a.waitTimeout = 50 * time.Millisecond

	_, err := a.SignIn(context.Background())
	require.Error(t, err)

	var terr *TimeoutError
	assert.True(t, errors.As(err, &terr), "expected TimeoutError, got %T", err)
}

func TestSignInReportsBlockedBrowser(t *testing.T) {
	a := newTestAuthenticator(t, "http://127.0.0.1:0/token", func(string) error {
		return fmt.Errorf("no display")
	})

	_, err := a.SignIn(context.Background())
	require.Error(t, err)

	var perr *PopupBlockedError
	assert.True(t, errors.As(err, &perr), "expected PopupBlockedError, got %T", err)
}

func TestSignInSurfacesTokenExchangeError(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenSrv.Close()

	var a *Authenticator
	a = newTestAuthenticator(t, tokenSrv.URL, func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		callbackFor(t, a, u.Query().Get("state"))
		return nil
	})

	_, err := a.SignIn(context.Background())
	require.Error(t, err)

	var xerr *TokenExchangeError
	require.True(t, errors.As(err, &xerr), "expected TokenExchangeError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, xerr.StatusCode)
	assert.Contains(t, xerr.Body, "invalid_grant")

	_, ok := a.StoredAccessToken()
	assert.False(t, ok)
}

func TestStoredAccessTokenHonorsExpiry(t *testing.T) {
	a := NewAuthenticator(testLogger(), "test-client-id")
	a.tokenPath = filepath.Join(t.TempDir(), "token.json")
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	// Nothing stored.
	_, ok := a.StoredAccessToken()
	assert.False(t, ok)

	// Valid credential.
	require.NoError(t, saveToken(a.tokenPath, &oauth2.Token{
		AccessToken: "live",
		Expiry:      now.Add(time.Hour),
	}))
	got, ok := a.StoredAccessToken()
	require.True(t, ok)
	assert.Equal(t, "live", got)

	// Expired credential is never returned.
	require.NoError(t, saveToken(a.tokenPath, &oauth2.Token{
		AccessToken: "stale",
		Expiry:      now.Add(-time.Minute),
	}))
	_, ok = a.StoredAccessToken()
	assert.False(t, ok)
}

func TestResetRemovesStoredCredential(t *testing.T) {
	a := NewAuthenticator(testLogger(), "test-client-id")
	a.tokenPath = filepath.Join(t.TempDir(), "token.json")

	require.NoError(t, saveToken(a.tokenPath, &oauth2.Token{AccessToken: "live"}))
	require.NoError(t, a.Reset())
	_, ok := a.StoredAccessToken()
	assert.False(t, ok)

	// Resetting twice is fine.
	require.NoError(t, a.Reset())
}
