package ports

import (
	"context"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// FingerprintQuerier is the passive OS-fingerprinting daemon, addressed by
// remote network address. Implementations return domain.ErrNoFingerprint when
// the daemon holds no data and domain.ErrBadFingerprint for malformed
// answers; transport errors come back as-is and are treated as "no update"
// by callers.
type FingerprintQuerier interface {
	Lookup(ctx context.Context, remoteAddr string) (domain.Observation, error)
}

// TicketClaims is the payload of the cross-service authentication ticket.
type TicketClaims struct {
	Username  string
	PublicID  string
	AuthLevel domain.AuthLevel
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TicketSigner issues and verifies the cross-service ticket cooperating
// services trust. Verification keys are exposed for the internal API.
type TicketSigner interface {
	Issue(claims TicketClaims) (string, error)
	Verify(token string) (TicketClaims, error)
	VerificationKeys() map[string]string
}

// PasswordHasher abstracts credential hashing for the sign-in flow.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TrustRootDiscoverer performs relying-party discovery, verifying that the
// request's return_to endpoint is authorized by the trust root.
type TrustRootDiscoverer interface {
	Validate(ctx context.Context, trustRoot, returnTo string) domain.TrustRootValidation
}
