package ports

import (
	"context"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/openid"
)

// DebounceStore is the short-lived throttle cache bounding write
// amplification. It is a best-effort guard, not a linearizable one:
// staleness of up to the TTL window is acceptable and concurrent requests may
// both miss. Correctness never depends on it.
type DebounceStore interface {
	// Get returns the cached value for key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// PendingRequestStore holds the decoded relying-party request across the
// consent redirect, keyed by browser session id. One session holds at most
// one pending request.
type PendingRequestStore interface {
	Put(ctx context.Context, sessionID string, req domain.PendingAuthRequest, ttl time.Duration) error
	// Get returns nil without error when no request is pending.
	Get(ctx context.Context, sessionID string) (*domain.PendingAuthRequest, error)
	Delete(ctx context.Context, sessionID string) error
}

// ConsentStore records in-session trust decisions under a key derived from
// the pending request, so consent given on the decide page is honored when
// the request resumes. DeleteAll purges every decision of a session on
// explicit cancellation.
type ConsentStore interface {
	PutDecision(ctx context.Context, sessionID, trustKey string, ttl time.Duration) error
	HasDecision(ctx context.Context, sessionID, trustKey string) (bool, error)
	DeleteAll(ctx context.Context, sessionID string) error
}

// AssociationStore keeps OpenID association secrets with their TTL. Shared
// associations are handed to relying parties by the associate endpoint;
// the private association signs unsolicited and fallback responses.
type AssociationStore interface {
	Put(ctx context.Context, assoc openid.Association, ttl time.Duration) error
	// Get returns nil without error when the handle is unknown or expired.
	Get(ctx context.Context, handle string) (*openid.Association, error)
	Delete(ctx context.Context, handle string) error
	// PutPrivate/GetPrivate manage the provider's own signing association,
	// used for unsolicited assertions and stateless verification.
	PutPrivate(ctx context.Context, assoc openid.Association, ttl time.Duration) error
	GetPrivate(ctx context.Context) (*openid.Association, error)
}
