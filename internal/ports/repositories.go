package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// BrowserCreateParams captures the fields set when a browser record is first
// issued. Tokens are generated by the caller so the application layer owns
// randomness.
type BrowserCreateParams struct {
	PublicID        string
	SessionID       string
	UserAgent       string
	RememberBrowser bool
	CreatedAt       time.Time
}

// BrowserRepository resolves and mutates browser identity records.
// PublicID is the only client-facing lookup key; unknown ids map to
// domain.ErrNotFound and are treated as "no browser", never as a failure.
type BrowserRepository interface {
	GetByPublicID(ctx context.Context, publicID string) (domain.Browser, error)
	Create(ctx context.Context, params BrowserCreateParams) (domain.Browser, error)
	UpdateSessionID(ctx context.Context, browserID uuid.UUID, sessionID string, at time.Time) error
	UpdateRemember(ctx context.Context, browserID uuid.UUID, remember bool, at time.Time) error
	// UpdateAuth persists the full authentication binding in one statement so a
	// logout can never leave a half-cleared row.
	UpdateAuth(ctx context.Context, browserID uuid.UUID, userID *uuid.UUID, level domain.AuthLevel, levelExpiresAt *time.Time, state domain.AuthState, at time.Time) error
}

// BrowserLoginUpsertParams is the natural key plus refreshed fields for a
// relying-party login record.
type BrowserLoginUpsertParams struct {
	UserID         uuid.UUID
	BrowserID      uuid.UUID
	Provider       string
	RemoteService  string
	ExpiresSession bool
	AuthTimestamp  time.Time
}

// BrowserLoginRepository manages per-relying-party login state.
// Upsert is idempotent by (user, browser, provider, remote service); the
// sign-out cascade returns the affected rows so callers can log each one.
type BrowserLoginRepository interface {
	Upsert(ctx context.Context, params BrowserLoginUpsertParams) error
	MarkSessionLoginsSignedOut(ctx context.Context, browserID uuid.UUID, at time.Time) ([]domain.BrowserLogin, error)
	ListByBrowser(ctx context.Context, browserID uuid.UUID) ([]domain.BrowserLogin, error)
}

// LastSeenParams records one sighting of a (user, browser) pair. Passive
// selects the passive field set on the row.
type LastSeenParams struct {
	UserID    uuid.UUID
	BrowserID uuid.UUID
	RemoteIP  string
	Passive   bool
	SeenAt    time.Time
}

// BrowserUserRepository tracks last-seen state per (user, browser).
// The write-amplification guard (30s debounce) lives in the cache, not here.
type BrowserUserRepository interface {
	UpsertLastSeen(ctx context.Context, params LastSeenParams) error
	Get(ctx context.Context, userID, browserID uuid.UUID) (domain.BrowserUser, error)
}

// FingerprintRepository owns the per-browser fingerprint timeline, queried in
// reverse-chronological order.
type FingerprintRepository interface {
	LatestForBrowser(ctx context.Context, browserID uuid.UUID) (domain.FingerprintObservation, error)
	Create(ctx context.Context, obs domain.FingerprintObservation) (domain.FingerprintObservation, error)
	Update(ctx context.Context, obs domain.FingerprintObservation) error
	ListByBrowser(ctx context.Context, browserID uuid.UUID, limit int) ([]domain.FingerprintObservation, error)
}

// UserRepository resolves principals.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
}

// IdentityRepository manages OpenID identifiers bound to principals.
// GetOrCreate reports whether the identity was created so first-use can be
// audited.
type IdentityRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Identity, error)
	GetByName(ctx context.Context, name string) (domain.Identity, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID, name string, now time.Time) (domain.Identity, bool, error)
}

// TrustedRootRepository is the durable consent whitelist.
// Upsert of an already-present (identity, trust root) pair is a no-op success.
type TrustedRootRepository interface {
	Upsert(ctx context.Context, identityID uuid.UUID, trustRoot string, now time.Time) error
	Exists(ctx context.Context, identityID uuid.UUID, trustRoot string) (bool, error)
}

// UserLogRepository appends human-readable audit entries.
type UserLogRepository interface {
	Append(ctx context.Context, entry domain.UserLogEntry) error
}
