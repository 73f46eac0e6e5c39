package application

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// Config carries the tunables the SSO flows depend on. All durations have
// sane defaults applied by bootstrap; zero values here are bugs.
type Config struct {
	// ExternalURL is the provider's public base URL, used to build the OP
	// endpoint and canonical identity URLs.
	ExternalURL string
	LoginPath   string

	ThrottleWindow    time.Duration
	AuthLevelTTL      time.Duration
	StrongLevelTTL    time.Duration
	PendingRequestTTL time.Duration
	ConsentTTL        time.Duration
	TicketTTL         time.Duration
	AssociationTTL    time.Duration

	TrustedRootPrefixes    []string
	FailedDiscoveryAsValid bool
	AXEnabled              bool
}

// Service implements every SSO use-case: browser identity and session
// binding, fingerprint correlation, the sign-in surface, and the OpenID
// responder. Handlers stay thin; all decisions live here.
type Service struct {
	cfg          Config
	browsers     ports.BrowserRepository
	logins       ports.BrowserLoginRepository
	browserUsers ports.BrowserUserRepository
	fingerprints ports.FingerprintRepository
	users        ports.UserRepository
	identities   ports.IdentityRepository
	trustedRoots ports.TrustedRootRepository
	userLog      ports.UserLogRepository

	debounce ports.DebounceStore
	pending  ports.PendingRequestStore
	consent  ports.ConsentStore
	assocs   ports.AssociationStore

	fingerprinter ports.FingerprintQuerier
	discoverer    ports.TrustRootDiscoverer
	hasher        ports.PasswordHasher
	tickets       ports.TicketSigner

	nowFn func() time.Time
}

type Dependencies struct {
	Config        Config
	Browsers      ports.BrowserRepository
	Logins        ports.BrowserLoginRepository
	BrowserUsers  ports.BrowserUserRepository
	Fingerprints  ports.FingerprintRepository
	Users         ports.UserRepository
	Identities    ports.IdentityRepository
	TrustedRoots  ports.TrustedRootRepository
	UserLog       ports.UserLogRepository
	Debounce      ports.DebounceStore
	Pending       ports.PendingRequestStore
	Consent       ports.ConsentStore
	Associations  ports.AssociationStore
	Fingerprinter ports.FingerprintQuerier
	Discoverer    ports.TrustRootDiscoverer
	Hasher        ports.PasswordHasher
	Tickets       ports.TicketSigner
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:           deps.Config,
		browsers:      deps.Browsers,
		logins:        deps.Logins,
		browserUsers:  deps.BrowserUsers,
		fingerprints:  deps.Fingerprints,
		users:         deps.Users,
		identities:    deps.Identities,
		trustedRoots:  deps.TrustedRoots,
		userLog:       deps.UserLog,
		debounce:      deps.Debounce,
		pending:       deps.Pending,
		consent:       deps.Consent,
		assocs:        deps.Associations,
		fingerprinter: deps.Fingerprinter,
		discoverer:    deps.Discoverer,
		hasher:        deps.Hasher,
		tickets:       deps.Tickets,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", "sso-frontend",
		"module", "application",
		"layer", "core",
	)
}

// fingerprintLogger is the dedicated audit stream for raw fingerprint
// sightings, separate from operational logs.
func fingerprintLogger() *slog.Logger {
	return slog.Default().With(
		"service", "sso-frontend",
		"module", "fingerprint",
		"layer", "audit",
	)
}

// newBrowserToken mints an opaque browser identifier. Tokens are random,
// carry no meaning, and are safe to expose to clients.
func newBrowserToken() string {
	return uuid.NewString()
}
