package idp

import "errors"

// Sentinel errors returned by the exchange client.
// Callers should use errors.Is for comparison.
var (
	// ErrUpstreamUnavailable is returned when the identity provider cannot
	// be reached or does not answer within the request timeout. The request
	// is terminal but the user may simply retry.
	ErrUpstreamUnavailable = errors.New("idp: identity provider unavailable")

	// ErrInvalidGrant is returned when the authorization code has already
	// been redeemed or has expired. Terminal — the user must restart login.
	ErrInvalidGrant = errors.New("idp: authorization code invalid or expired")

	// ErrClaimsDecode is returned when the id_token fails signature
	// verification or its claims are malformed or missing required
	// attributes. Logged as a security-relevant event by the caller.
	ErrClaimsDecode = errors.New("idp: id_token claims could not be decoded")
)
