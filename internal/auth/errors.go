package auth

import "errors"

var (
	// State errors
	ErrMalformedState     = errors.New("state parameter is malformed")
	ErrMissingLinkSession = errors.New("add-account flow requires a linking session id")
	ErrUnexpectedLink     = errors.New("login flow must not carry a linking session id")

	// Provider errors
	ErrProviderExchange = errors.New("identity provider rejected the authorization code")
	ErrProviderProfile  = errors.New("failed to fetch profile from identity provider")
	ErrProviderRefresh  = errors.New("identity provider rejected the refresh token")
	ErrProviderRevoke   = errors.New("identity provider failed to revoke the token")
	ErrMissingRefresh   = errors.New("refresh token is empty")
)
