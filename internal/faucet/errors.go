// Package faucet holds the shared error taxonomy for the claim pipeline.
// Every guard rejects with one of these sentinel errors; the HTTP layer maps
// them onto deliberately generic user-facing messages so a caller cannot tell
// which specific check failed.
package faucet

import "errors"

var (
	// ErrInvalidAddress is returned at session start for a malformed
	// destination address. Rejected locally, never logged as abuse.
	ErrInvalidAddress = errors.New("invalid address format")

	// Client-side contract violations. All of these map to the same generic
	// response; the distinction only exists for the abuse log.

	ErrMissingToken          = errors.New("missing session token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired session token")
	ErrCSRFMismatch          = errors.New("csrf token mismatch")
	ErrSessionTooYoung       = errors.New("session consumed before minimum dwell time")
	ErrIPMismatch            = errors.New("request ip does not match session ip")
	ErrOriginMismatch        = errors.New("request origin does not match session origin")
	ErrMissingOrigin         = errors.New("missing origin header")
	ErrOriginNotAllowed      = errors.New("origin not in allow-list")
	ErrAddressMismatch       = errors.New("claimed address does not match session address")
	ErrScoreTooLow           = errors.New("score below configured minimum")

	// Throttling. Not faults, but logged for the external ban tool.

	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrCooldownActive = errors.New("cooldown active")

	// Infrastructure faults. Surfaced as transient unavailability; safe for
	// the client to retry because no state is mutated before the commit point.

	ErrInsufficientFunds = errors.New("faucet balance below configured floor")
	ErrStoreUnavailable  = errors.New("session store unavailable")
	ErrUpstreamTimeout   = errors.New("wallet request timed out")
	ErrUpstreamFailure   = errors.New("wallet request failed")
)

// IsClientViolation reports whether err is a client-side contract violation
// that should be answered with a generic invalid-request message.
func IsClientViolation(err error) bool {
	for _, target := range []error{
		ErrMissingToken,
		ErrInvalidOrExpiredToken,
		ErrCSRFMismatch,
		ErrSessionTooYoung,
		ErrIPMismatch,
		ErrOriginMismatch,
		ErrMissingOrigin,
		ErrOriginNotAllowed,
		ErrAddressMismatch,
		ErrScoreTooLow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsThrottled reports whether err is a rate-limit or cooldown rejection.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCooldownActive)
}

// IsUnavailable reports whether err is an infrastructure fault that should be
// answered with a transient-unavailability response.
func IsUnavailable(err error) bool {
	for _, target := range []error{
		ErrInsufficientFunds,
		ErrStoreUnavailable,
		ErrUpstreamTimeout,
		ErrUpstreamFailure,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
