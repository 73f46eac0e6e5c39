package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierSelect is the OpenID 2.0 sentinel claim meaning "the provider
// chooses the identity".
const IdentifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"

// Identity is one OpenID identifier owned by a principal. The Name is the
// path segment of the identity URL; the canonical URL is derived from the
// provider's external base URL at request time.
type Identity struct {
	IdentityID uuid.UUID
	UserID     uuid.UUID
	Name       string
	IsDefault  bool
	CreatedAt  time.Time
}

// TrustedRoot is a durable whitelist entry recording that the owner of an
// identity consented to asserting it towards a relying party. The upsert on
// (identity, trust root) is idempotent by natural key.
type TrustedRoot struct {
	TrustedRootID uuid.UUID
	IdentityID    uuid.UUID
	TrustRoot     string
	CreatedAt     time.Time
}

// TrustRootValidation is the recorded outcome of return_to discovery for a
// relying-party request. It is stashed with the pending request across the
// consent redirect.
type TrustRootValidation string

const (
	TrustRootValid           TrustRootValidation = "Valid"
	TrustRootInvalid         TrustRootValidation = "Invalid"
	TrustRootDiscoveryFailed TrustRootValidation = "DISCOVERY_FAILED"
)

// PendingAuthRequest is a decoded relying-party request held across the
// consent redirect. Raw keeps the full wire message so the responder can
// re-decode on the redirect-back leg exactly as if it arrived in-band.
// The record is scoped to one browser session and destroyed on completion
// or cancellation.
type PendingAuthRequest struct {
	Raw            map[string]string   `json:"raw"`
	TrustRootValid TrustRootValidation `json:"trust_root_valid"`
	StashedAt      time.Time           `json:"stashed_at"`
}
