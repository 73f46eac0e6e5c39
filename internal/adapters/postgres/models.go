package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"column:username"`
	Email        string    `gorm:"column:email"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	PasswordHash string    `gorm:"column:password_hash"`
	IsActive     bool      `gorm:"column:is_active"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type browserModel struct {
	BrowserID          uuid.UUID  `gorm:"column:browser_id;type:uuid;default:gen_random_uuid();primaryKey"`
	PublicID           string     `gorm:"column:public_id"`
	SessionID          string     `gorm:"column:session_id"`
	UserID             *uuid.UUID `gorm:"column:user_id"`
	RememberBrowser    bool       `gorm:"column:remember_browser"`
	AuthLevel          int        `gorm:"column:auth_level"`
	AuthLevelExpiresAt *time.Time `gorm:"column:auth_level_expires_at"`
	AuthState          string     `gorm:"column:auth_state"`
	UserAgent          string     `gorm:"column:user_agent"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (browserModel) TableName() string { return "browsers" }

type browserLoginModel struct {
	LoginID        uuid.UUID `gorm:"column:login_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id"`
	BrowserID      uuid.UUID `gorm:"column:browser_id"`
	Provider       string    `gorm:"column:provider"`
	RemoteService  string    `gorm:"column:remote_service"`
	SignedOut      bool      `gorm:"column:signed_out"`
	ExpiresSession bool      `gorm:"column:expires_session"`
	AuthTimestamp  time.Time `gorm:"column:auth_timestamp"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (browserLoginModel) TableName() string { return "browser_logins" }

type browserUserModel struct {
	UserID          uuid.UUID  `gorm:"column:user_id;primaryKey"`
	BrowserID       uuid.UUID  `gorm:"column:browser_id;primaryKey"`
	RemoteIP        *string    `gorm:"column:remote_ip"`
	LastSeen        *time.Time `gorm:"column:last_seen"`
	RemoteIPPassive *string    `gorm:"column:remote_ip_passive"`
	LastSeenPassive *time.Time `gorm:"column:last_seen_passive"`
}

func (browserUserModel) TableName() string { return "browser_users" }

type fingerprintModel struct {
	ObservationID  uuid.UUID `gorm:"column:observation_id;type:uuid;default:gen_random_uuid();primaryKey"`
	BrowserID      uuid.UUID `gorm:"column:browser_id"`
	FirstSeen      time.Time `gorm:"column:first_seen"`
	LastSeen       time.Time `gorm:"column:last_seen"`
	TotalConn      int64     `gorm:"column:total_conn"`
	UptimeSec      *int64    `gorm:"column:uptime_sec"`
	UpModDays      *int32    `gorm:"column:up_mod_days"`
	Distance       int16     `gorm:"column:distance"`
	OSMatchQuality int16     `gorm:"column:os_match_quality"`
	OSName         string    `gorm:"column:os_name"`
	OSFlavor       string    `gorm:"column:os_flavor"`
	LinkType       string    `gorm:"column:link_type"`
	Wraparounds    int       `gorm:"column:wraparounds"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (fingerprintModel) TableName() string { return "browser_fingerprints" }

type identityModel struct {
	IdentityID uuid.UUID `gorm:"column:identity_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id"`
	Name       string    `gorm:"column:name"`
	IsDefault  bool      `gorm:"column:is_default"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (identityModel) TableName() string { return "openid_identities" }

type trustedRootModel struct {
	TrustedRootID uuid.UUID `gorm:"column:trusted_root_id;type:uuid;default:gen_random_uuid();primaryKey"`
	IdentityID    uuid.UUID `gorm:"column:identity_id"`
	TrustRoot     string    `gorm:"column:trust_root"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (trustedRootModel) TableName() string { return "openid_trusted_roots" }

type userLogModel struct {
	EntryID   uuid.UUID `gorm:"column:entry_id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id"`
	BrowserID uuid.UUID `gorm:"column:browser_id"`
	Message   string    `gorm:"column:message"`
	Icon      string    `gorm:"column:icon"`
	RemoteIP  *string   `gorm:"column:remote_ip"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (userLogModel) TableName() string { return "user_log_entries" }
