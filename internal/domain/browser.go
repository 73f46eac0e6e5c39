package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthLevel is the ordinal strength of a browser's current authentication.
// Levels only ever compare with < / >=, never by exact value.
type AuthLevel int

const (
	LevelUnauth AuthLevel = 0
	LevelPublic AuthLevel = 1
	LevelBasic  AuthLevel = 2
	LevelStrong AuthLevel = 3
)

func (l AuthLevel) String() string {
	switch l {
	case LevelPublic:
		return "public"
	case LevelBasic:
		return "basic"
	case LevelStrong:
		return "strong"
	default:
		return "unauthenticated"
	}
}

// AuthState tracks where the browser currently is in the sign-in flow.
type AuthState string

const (
	StateRequestBasic  AuthState = "request_basic"
	StateRequestStrong AuthState = "request_strong"
	StateAuthenticated AuthState = "authenticated"
)

// Browser binds one physical browser installation to its identity tokens and
// authentication strength. PublicID never changes for the lifetime of the
// record; SessionID rotates whenever the client presents no matching
// session-scoped cookie, which is interpreted as a browser restart.
type Browser struct {
	BrowserID          uuid.UUID
	PublicID           string
	SessionID          string
	UserID             *uuid.UUID
	Username           string
	RememberBrowser    bool
	AuthLevel          AuthLevel
	AuthLevelExpiresAt *time.Time
	AuthState          AuthState
	UserAgent          string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// ValidSessionBID is request-scoped, derived by session evaluation.
	// It is never persisted.
	ValidSessionBID bool
}

// EffectiveAuthLevel degrades an expired strong level to basic without
// mutating stored state. The stored row keeps the strong level so a
// re-verification can restore it cheaply.
func (b Browser) EffectiveAuthLevel(now time.Time) AuthLevel {
	if b.AuthLevel >= LevelStrong && b.AuthLevelExpiresAt != nil && !b.AuthLevelExpiresAt.After(now) {
		return LevelBasic
	}
	return b.AuthLevel
}

// IsAuthenticated reports whether a principal is bound with at least basic strength.
func (b Browser) IsAuthenticated(now time.Time) bool {
	return b.UserID != nil && b.EffectiveAuthLevel(now) >= LevelBasic
}

// BrowserLogin is one (browser, relying party, provider) sign-in, active or
// former. ExpiresSession logins are force-signed-out when the owning browser's
// session binding is invalidated; persistent logins are deliberately left
// untouched on restart.
type BrowserLogin struct {
	LoginID        uuid.UUID
	UserID         uuid.UUID
	BrowserID      uuid.UUID
	Provider       string
	RemoteService  string
	SignedOut      bool
	ExpiresSession bool
	AuthTimestamp  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BrowserUser tracks last-seen state per (user, browser) pair. Passive
// observations (heartbeat polling) update a distinct field set from active
// (navigational) ones so the two signal qualities are never conflated.
type BrowserUser struct {
	UserID          uuid.UUID
	BrowserID       uuid.UUID
	RemoteIP        string
	LastSeen        *time.Time
	RemoteIPPassive string
	LastSeenPassive *time.Time
}

// UserLogEntry is a human-readable audit line shown to the user.
type UserLogEntry struct {
	EntryID   uuid.UUID
	UserID    uuid.UUID
	BrowserID uuid.UUID
	Message   string
	Icon      string
	RemoteIP  string
	CreatedAt time.Time
}
