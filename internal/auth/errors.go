package auth

import (
	"fmt"
	"time"
)

// StateMismatchError means the authorization callback carried a state value
// that was never issued by this process. The anti-forgery check failed and
// no credential was stored.
type StateMismatchError struct {
	Got string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("oauth state mismatch: callback returned unknown state %q", e.Got)
}

// TimeoutError means the user did not complete the interactive
// authorization within the allowed window.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("authorization timed out after %s", e.After)
}

// TokenExchangeError reports a non-success response from the token
// endpoint.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: %d %s", e.StatusCode, e.Body)
}

// PopupBlockedError means the browser could not be opened for the
// interactive authorization.
type PopupBlockedError struct {
	Err error
}

func (e *PopupBlockedError) Error() string {
	return fmt.Sprintf("could not open browser for authorization: %v", e.Err)
}

func (e *PopupBlockedError) Unwrap() error { return e.Err }
