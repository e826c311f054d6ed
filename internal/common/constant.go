// Package common contains shared constants and sentinel errors used across
// the session service components.
package common

const (
	// RefreshTokenCookieName is the HTTP cookie carrying the opaque refresh token.
	RefreshTokenCookieName = "refreshToken"

	// AuthorizationHeaderName carries the bearer access token.
	AuthorizationHeaderName = "Authorization"

	// ForwardedForHeaderName is consulted first when resolving a client's origin address.
	ForwardedForHeaderName = "X-Forwarded-For"

	// DefaultRole is assigned to newly registered users.
	DefaultRole = "User"
)
