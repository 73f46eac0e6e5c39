package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized signals a missing or insufficient authentication binding.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials hides whether username or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	// ErrBotAgent marks requests from denylisted automated clients.
	// These are short-circuited before any browser state is read.
	ErrBotAgent = errors.New("automated user agent")
	// ErrNoFingerprint means the fingerprint source has no data for the address.
	// This is a normal condition for idle or short-lived connections.
	ErrNoFingerprint = errors.New("no fingerprint data")
	// ErrBadFingerprint means the fingerprint source answered with malformed data.
	ErrBadFingerprint = errors.New("invalid fingerprint data")
	// ErrImmediateUnsupported is raised for checkid_immediate requests that cannot
	// be answered synchronously. The protocol offers no safe degraded response,
	// so this must fail loudly instead of silently downgrading.
	ErrImmediateUnsupported = errors.New("checkid_immediate mode not supported")
	// ErrInvalidIdentityURL covers assertion requests naming an identity URL
	// that does not verify against the provider endpoint.
	ErrInvalidIdentityURL = errors.New("invalid identity URL")
	ErrNoPendingRequest   = errors.New("no pending authentication request")
	ErrTicketExpired      = errors.New("ticket expired")
)
