package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the SSO front-end.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string `validate:"required"`

	HTTPPort int `validate:"gte=1,lte=65535"`
	GRPCPort int `validate:"gte=1,lte=65535"`

	DatabaseURL string `validate:"required"`
	RedisURL    string `validate:"required"`
	MaxDBConns  int32  `validate:"gte=1"`

	// ExternalURL is the public base URL cooperating services and relying
	// parties see; identity URLs and the OP endpoint are built from it.
	ExternalURL string `validate:"required,url"`

	P0fSocketPath string
	P0fTimeout    time.Duration `validate:"gt=0"`

	PublicCookieName  string `validate:"required"`
	SessionCookieName string `validate:"required"`
	TicketCookieName  string `validate:"required"`
	PublicCookieTTL   time.Duration
	SecureCookies     bool
	ServerHeader      string

	TicketPrivateKeyPEM  string
	TicketPublicKeyPEM   string
	TicketKeyID          string `validate:"required"`
	AllowEphemeralTicket bool

	BcryptCost int `validate:"gte=4,lte=31"`

	ThrottleWindow    time.Duration `validate:"gt=0"`
	TimesyncWindow    time.Duration `validate:"gt=0"`
	AuthLevelTTL      time.Duration `validate:"gt=0"`
	StrongLevelTTL    time.Duration `validate:"gt=0"`
	PendingRequestTTL time.Duration `validate:"gt=0"`
	ConsentTTL        time.Duration `validate:"gt=0"`
	TicketTTL         time.Duration `validate:"gt=0"`
	AssociationTTL    time.Duration `validate:"gt=0"`
	DiscoveryTimeout  time.Duration `validate:"gt=0"`

	TrustedRootPrefixes    []string
	FailedDiscoveryAsValid bool
	AXEnabled              bool
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL   string `yaml:"postgres_url"`
		RedisURL      string `yaml:"redis_url"`
		P0fSocketPath string `yaml:"p0f_socket_path"`
	} `yaml:"dependencies"`
	Site struct {
		ExternalURL   string `yaml:"external_url"`
		SecureCookies bool   `yaml:"secure_cookies"`
		ServerHeader  string `yaml:"server_header"`
	} `yaml:"site"`
	OpenID struct {
		TrustedRootPrefixes    []string `yaml:"trusted_root_prefixes"`
		FailedDiscoveryAsValid *bool    `yaml:"failed_discovery_as_valid"`
		AXEnabled              *bool    `yaml:"ax_enabled"`
	} `yaml:"openid"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "sso-frontend",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MaxDBConns:           20,
		P0fSocketPath:        "/var/run/p0f.sock",
		P0fTimeout:           2 * time.Second,
		PublicCookieName:     "v2public-browserid",
		SessionCookieName:    "v2sessionbid",
		TicketCookieName:     "auth_pubtkt",
		PublicCookieTTL:      365 * 24 * time.Hour,
		ServerHeader:         "sso-frontend",
		TicketKeyID:          "sso-ticket-key-1",
		AllowEphemeralTicket: true,
		BcryptCost:           12,
		ThrottleWindow:       30 * time.Second,
		TimesyncWindow:       12 * time.Hour,
		AuthLevelTTL:         12 * time.Hour,
		StrongLevelTTL:       4 * time.Hour,
		PendingRequestTTL:    time.Hour,
		ConsentTTL:           30 * 24 * time.Hour,
		TicketTTL:            2 * time.Minute,
		AssociationTTL:       6 * time.Hour,
		DiscoveryTimeout:     5 * time.Second,
		AXEnabled:            true,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.P0fSocketPath != "" {
			cfg.P0fSocketPath = f.Dependencies.P0fSocketPath
		}
		if f.Site.ExternalURL != "" {
			cfg.ExternalURL = f.Site.ExternalURL
		}
		cfg.SecureCookies = f.Site.SecureCookies
		if f.Site.ServerHeader != "" {
			cfg.ServerHeader = f.Site.ServerHeader
		}
		if len(f.OpenID.TrustedRootPrefixes) > 0 {
			cfg.TrustedRootPrefixes = f.OpenID.TrustedRootPrefixes
		}
		if f.OpenID.FailedDiscoveryAsValid != nil {
			cfg.FailedDiscoveryAsValid = *f.OpenID.FailedDiscoveryAsValid
		}
		if f.OpenID.AXEnabled != nil {
			cfg.AXEnabled = *f.OpenID.AXEnabled
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ExternalURL = envOrDefault("EXTERNAL_URL", cfg.ExternalURL)
	cfg.P0fSocketPath = envOrDefault("P0F_SOCKET_PATH", cfg.P0fSocketPath)
	cfg.TicketPrivateKeyPEM = envOrDefault("TICKET_PRIVATE_KEY_PEM", cfg.TicketPrivateKeyPEM)
	cfg.TicketPublicKeyPEM = envOrDefault("TICKET_PUBLIC_KEY_PEM", cfg.TicketPublicKeyPEM)
	cfg.TicketKeyID = envOrDefault("TICKET_KEY_ID", cfg.TicketKeyID)
	cfg.AllowEphemeralTicket = envBool("TICKET_ALLOW_EPHEMERAL", cfg.AllowEphemeralTicket)
	cfg.SecureCookies = envBool("SECURE_COOKIES", cfg.SecureCookies)
	cfg.FailedDiscoveryAsValid = envBool("OPENID_FAILED_DISCOVERY_AS_VALID", cfg.FailedDiscoveryAsValid)
	cfg.AXEnabled = envBool("OPENID_AX_ENABLED", cfg.AXEnabled)
	cfg.TrustedRootPrefixes = envCSV("OPENID_TRUSTED_ROOT_PREFIXES", cfg.TrustedRootPrefixes)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.P0fTimeout = time.Duration(envInt("P0F_TIMEOUT_MS", int(cfg.P0fTimeout.Milliseconds()))) * time.Millisecond
	cfg.PublicCookieTTL = time.Duration(envInt("PUBLIC_COOKIE_TTL_DAYS", int(cfg.PublicCookieTTL.Hours()/24))) * 24 * time.Hour
	cfg.ThrottleWindow = time.Duration(envInt("PING_THROTTLE_SECONDS", int(cfg.ThrottleWindow.Seconds()))) * time.Second
	cfg.TimesyncWindow = time.Duration(envInt("TIMESYNC_WINDOW_HOURS", int(cfg.TimesyncWindow.Hours()))) * time.Hour
	cfg.AuthLevelTTL = time.Duration(envInt("AUTH_LEVEL_TTL_HOURS", int(cfg.AuthLevelTTL.Hours()))) * time.Hour
	cfg.StrongLevelTTL = time.Duration(envInt("STRONG_LEVEL_TTL_HOURS", int(cfg.StrongLevelTTL.Hours()))) * time.Hour
	cfg.PendingRequestTTL = time.Duration(envInt("OPENID_PENDING_TTL_MINUTES", int(cfg.PendingRequestTTL.Minutes()))) * time.Minute
	cfg.ConsentTTL = time.Duration(envInt("OPENID_CONSENT_TTL_DAYS", int(cfg.ConsentTTL.Hours()/24))) * 24 * time.Hour
	cfg.TicketTTL = time.Duration(envInt("TICKET_TTL_SECONDS", int(cfg.TicketTTL.Seconds()))) * time.Second
	cfg.AssociationTTL = time.Duration(envInt("OPENID_ASSOCIATION_TTL_MINUTES", int(cfg.AssociationTTL.Minutes()))) * time.Minute
	cfg.DiscoveryTimeout = time.Duration(envInt("OPENID_DISCOVERY_TIMEOUT_SECONDS", int(cfg.DiscoveryTimeout.Seconds()))) * time.Second

	if (cfg.TicketPrivateKeyPEM == "" || cfg.TicketPublicKeyPEM == "") && !cfg.AllowEphemeralTicket {
		return Config{}, fmt.Errorf("missing TICKET_PRIVATE_KEY_PEM or TICKET_PUBLIC_KEY_PEM")
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
