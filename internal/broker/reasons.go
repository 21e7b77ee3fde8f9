package broker

import (
	"errors"

	"github.com/flowgate-io/flowgate/internal/identity"
	"github.com/flowgate-io/flowgate/internal/idp"
	"github.com/flowgate-io/flowgate/internal/session"
)

// Reason codes surfaced to the browser via the error redirect. Stable
// strings: operators grep for them and the error page switches on them.
const (
	ReasonUpstreamUnavailable = "upstream_unavailable"
	ReasonInvalidGrant        = "invalid_grant"
	ReasonClaimsInvalid       = "claims_invalid"
	ReasonReconcileFailed     = "reconcile_failed"
	ReasonExchangeInProgress  = "exchange_in_progress"
	ReasonCodeAlreadyUsed     = "code_already_used"
	ReasonInternal            = "internal_error"
)

// ReasonCode maps a callback failure to its public reason code. Unknown
// errors collapse to ReasonInternal so internal detail never leaks into a
// redirect URL.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, idp.ErrUpstreamUnavailable):
		return ReasonUpstreamUnavailable
	case errors.Is(err, idp.ErrInvalidGrant):
		return ReasonInvalidGrant
	case errors.Is(err, idp.ErrClaimsDecode):
		return ReasonClaimsInvalid
	case errors.Is(err, identity.ErrReconcile):
		return ReasonReconcileFailed
	case errors.Is(err, session.ErrExchangeInProgress):
		return ReasonExchangeInProgress
	case errors.Is(err, session.ErrCodeAlreadyProcessed):
		return ReasonCodeAlreadyUsed
	default:
		return ReasonInternal
	}
}
