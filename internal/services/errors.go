package services

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the machine-readable code travels on AuthError.
var (
	ErrOAuthProvider       = errors.New("identity provider returned an error")
	ErrTokenExchange       = errors.New("authorization code exchange failed")
	ErrProfileFetch        = errors.New("profile fetch failed")
	ErrIdentityPersistence = errors.New("identity persistence failed")
	ErrSideEffect          = errors.New("post-authentication side effect failed")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionInvalid      = errors.New("session is invalid")
	ErrRefreshTokenMissing = errors.New("refresh token missing")
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInvalidRequest      = errors.New("invalid request")
)

var errorCodes = map[error]string{
	ErrOAuthProvider:       "oauth_error",
	ErrTokenExchange:       "token_exchange_failed",
	ErrProfileFetch:        "profile_fetch_failed",
	ErrIdentityPersistence: "persistence_failed",
	ErrSideEffect:          "side_effect_failed",
	ErrSessionNotFound:     "session_not_found",
	ErrSessionInvalid:      "session_invalid",
	ErrRefreshTokenMissing: "refresh_token_missing",
	ErrInvalidState:        "invalid_state",
	ErrAccountNotFound:     "account_not_found",
	ErrInvalidRequest:      "invalid_request",
}

// AuthError is a domain failure with a machine-readable code and a message
// that is safe to show to the caller. Err holds the underlying cause.
type AuthError struct {
	Code    string
	Message string
	Err     error

	kind error
}

// NewAuthError builds a failure of the given kind; kind must be one of the
// Err* values above.
func NewAuthError(kind error, message string, cause error) *AuthError {
	return &AuthError{
		Code:    errorCodes[kind],
		Message: message,
		Err:     cause,
		kind:    kind,
	}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.Err}
}

// CodeOf returns the machine-readable code of err, or "server_error" when
// err is not a domain failure.
func CodeOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return "server_error"
}

// MessageOf returns the caller-safe message of err
func MessageOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "internal server error"
}
