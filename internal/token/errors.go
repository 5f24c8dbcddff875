package token

import "errors"

var (
	// ErrRefreshTokenMissing means the session can only recover through a
	// full re-authentication.
	ErrRefreshTokenMissing = errors.New("refresh token missing")

	// ErrRefreshFailed indicates the provider rejected a refresh attempt
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrCredentialExpired is returned (wrapped) by downstream provider calls
	// when the access token was rejected as expired or revoked.
	ErrCredentialExpired = errors.New("provider credential expired")
)
