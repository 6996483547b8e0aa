// Package auth obtains and stores the Google Calendar bearer credential
// through an authorization-code flow with PKCE. No client secret is used;
// the authorization code is captured by a loopback HTTP server and
// exchanged together with the proof-key verifier.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	tokenFileName = "google-token.json"

	listenAddr   = "localhost:6789"
	callbackPath = "/oauth2callback"

	// How long the user gets to finish the consent screen.
	authWaitTimeout = 5 * time.Minute
)

type callbackResult struct {
	code  string
	state string
}

// Authenticator runs the interactive sign-in flow and manages the stored
// credential. The credential file is overwritten wholesale on every
// successful authorization; concurrent sign-ins are last-write-wins.
type Authenticator struct {
	logger    *slog.Logger
	config    *oauth2.Config
	tokenPath string

	addr        string
	waitTimeout time.Duration
	openURL     func(url string) error
	now         func() time.Time

	// Proof-key verifiers for in-flight attempts, keyed by state token and
	// erased when the callback for that state arrives.
	mu      sync.Mutex
	pending map[string]string
}

// NewAuthenticator builds an authenticator for the given OAuth client id.
// Only the calendar-event-write scope is requested.
func NewAuthenticator(logger *slog.Logger, clientID string) *Authenticator {
	return &Authenticator{
		logger: logger,
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: fmt.Sprintf("http://%s%s", listenAddr, callbackPath),
			Scopes:      []string{calendar.CalendarEventsScope},
			Endpoint:    google.Endpoint,
		},
		tokenPath:   TokenPath(),
		addr:        listenAddr,
		waitTimeout: authWaitTimeout,
		openURL:     OpenBrowser,
		now:         time.Now,
		pending:     make(map[string]string),
	}
}

// TokenPath returns the XDG-compliant location of the stored credential.
func TokenPath() string {
	return filepath.Join(xdg.DataHome, "simplesync", tokenFileName)
}

// SignIn runs one interactive authorization attempt: it opens the
// provider's consent page in the browser, waits for the redirect on the
// loopback server, verifies the anti-forgery state, exchanges the code with
// the proof-key verifier and persists the resulting credential.
func (a *Authenticator) SignIn(ctx context.Context) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()
	a.stash(state, verifier)
	defer a.discard(state)

	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s for the OAuth redirect: %w", a.addr, err)
	}

	resultCh := make(chan callbackResult, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			code := q.Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code not found in redirect")
				return
			}
			fmt.Fprint(w, "Authorization successful! You can close this window.")
			resultCh <- callbackResult{code: code, state: q.Get("state")}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Printf("Opening browser for Google authorization.\nIf it doesn't open, visit:\n%s\n", authURL)
	if err := a.openURL(authURL); err != nil {
		return nil, &PopupBlockedError{Err: err}
	}

	a.logger.Info("Waiting for authorization callback", "redirect", a.config.RedirectURL)
	select {
	case res := <-resultCh:
		returnedVerifier, ok := a.take(res.state)
		if !ok {
			return nil, &StateMismatchError{Got: res.state}
		}
		return a.exchange(ctx, res.code, returnedVerifier)
	case err := <-errCh:
		return nil, err
	case <-time.After(a.waitTimeout):
		return nil, &TimeoutError{After: a.waitTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// exchange trades the authorization code and proof-key verifier for tokens
// and persists them.
func (a *Authenticator) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return nil, &TokenExchangeError{StatusCode: status, Body: string(rerr.Body)}
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	if err := saveToken(a.tokenPath, token); err != nil {
		return nil, err
	}
	a.logger.Info("Authorization complete, credential saved", "path", a.tokenPath)
	return token, nil
}

// StoredAccessToken returns the cached access token when one is present and
// its expiry has not passed. Expired or missing credentials return false;
// no refresh-token exchange is attempted.
func (a *Authenticator) StoredAccessToken() (string, bool) {
	token, err := loadToken(a.tokenPath)
	if err != nil {
		return "", false
	}
	if token.AccessToken == "" {
		return "", false
	}
	if !token.Expiry.IsZero() && !a.now().Before(token.Expiry) {
		return "", false
	}
	return token.AccessToken, true
}

// Reset removes the stored credential, forcing the next sync through the
// interactive flow.
func (a *Authenticator) Reset() error {
	if err := os.Remove(a.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove token file %s: %w", a.tokenPath, err)
	}
	return nil
}

func (a *Authenticator) stash(state, verifier string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[state] = verifier
}

// take retrieves and erases the verifier for a state token. A state with no
// pending verifier is a forgery or a stale callback.
func (a *Authenticator) take(state string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	verifier, ok := a.pending[state]
	delete(a.pending, state)
	return verifier, ok
}

func (a *Authenticator) discard(state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, state)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token from %s: %w", path, err)
	}
	return token, nil
}

// OpenBrowser launches the default browser on the host platform.
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
