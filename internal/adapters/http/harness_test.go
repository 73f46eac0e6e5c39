package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/openid"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// The HTTP tests run the real application service over map-backed stores so
// the full middleware chain, cookie contract included, is exercised
// end-to-end without external dependencies.

type memBrowsers struct {
	items map[uuid.UUID]*domain.Browser
	reads int
}

func (m *memBrowsers) GetByPublicID(_ context.Context, publicID string) (domain.Browser, error) {
	m.reads++
	for _, b := range m.items {
		if b.PublicID == publicID {
			return *b, nil
		}
	}
	return domain.Browser{}, domain.ErrNotFound
}

func (m *memBrowsers) Create(_ context.Context, params ports.BrowserCreateParams) (domain.Browser, error) {
	b := domain.Browser{
		BrowserID:       uuid.New(),
		PublicID:        params.PublicID,
		SessionID:       params.SessionID,
		UserAgent:       params.UserAgent,
		RememberBrowser: params.RememberBrowser,
		AuthState:       domain.StateRequestBasic,
		CreatedAt:       params.CreatedAt,
	}
	m.items[b.BrowserID] = &b
	return b, nil
}

func (m *memBrowsers) UpdateSessionID(_ context.Context, browserID uuid.UUID, sessionID string, _ time.Time) error {
	b, ok := m.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.SessionID = sessionID
	return nil
}

func (m *memBrowsers) UpdateRemember(_ context.Context, browserID uuid.UUID, remember bool, _ time.Time) error {
	b, ok := m.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.RememberBrowser = remember
	return nil
}

func (m *memBrowsers) UpdateAuth(_ context.Context, browserID uuid.UUID, userID *uuid.UUID, level domain.AuthLevel, expires *time.Time, state domain.AuthState, _ time.Time) error {
	b, ok := m.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.UserID = userID
	b.AuthLevel = level
	b.AuthLevelExpiresAt = expires
	b.AuthState = state
	return nil
}

type memLogins struct{ items []domain.BrowserLogin }

func (m *memLogins) Upsert(_ context.Context, params ports.BrowserLoginUpsertParams) error {
	m.items = append(m.items, domain.BrowserLogin{
		LoginID: uuid.New(), UserID: params.UserID, BrowserID: params.BrowserID,
		Provider: params.Provider, RemoteService: params.RemoteService,
		ExpiresSession: params.ExpiresSession, AuthTimestamp: params.AuthTimestamp,
	})
	return nil
}

func (m *memLogins) MarkSessionLoginsSignedOut(_ context.Context, browserID uuid.UUID, _ time.Time) ([]domain.BrowserLogin, error) {
	var flipped []domain.BrowserLogin
	for i, l := range m.items {
		if l.BrowserID == browserID && l.ExpiresSession && !l.SignedOut {
			m.items[i].SignedOut = true
			flipped = append(flipped, m.items[i])
		}
	}
	return flipped, nil
}

func (m *memLogins) ListByBrowser(_ context.Context, browserID uuid.UUID) ([]domain.BrowserLogin, error) {
	var out []domain.BrowserLogin
	for _, l := range m.items {
		if l.BrowserID == browserID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memBrowserUsers struct {
	mu    sync.Mutex
	calls []ports.LastSeenParams
}

func (m *memBrowserUsers) UpsertLastSeen(_ context.Context, params ports.LastSeenParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	return nil
}

func (m *memBrowserUsers) Get(context.Context, uuid.UUID, uuid.UUID) (domain.BrowserUser, error) {
	return domain.BrowserUser{}, domain.ErrNotFound
}

func (m *memBrowserUsers) sightings() []ports.LastSeenParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.LastSeenParams(nil), m.calls...)
}

type memFingerprints struct{}

func (memFingerprints) LatestForBrowser(context.Context, uuid.UUID) (domain.FingerprintObservation, error) {
	return domain.FingerprintObservation{}, domain.ErrNotFound
}
func (memFingerprints) Create(_ context.Context, obs domain.FingerprintObservation) (domain.FingerprintObservation, error) {
	return obs, nil
}
func (memFingerprints) Update(context.Context, domain.FingerprintObservation) error { return nil }
func (memFingerprints) ListByBrowser(context.Context, uuid.UUID, int) ([]domain.FingerprintObservation, error) {
	return nil, nil
}

type memUsers struct{ items map[string]domain.User }

func (m *memUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	u, ok := m.items[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	for _, u := range m.items {
		if u.UserID == userID {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

type memIdentities struct{ items []domain.Identity }

func (m *memIdentities) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Identity, error) {
	var out []domain.Identity
	for _, id := range m.items {
		if id.UserID == userID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memIdentities) GetByName(_ context.Context, name string) (domain.Identity, error) {
	for _, id := range m.items {
		if id.Name == name {
			return id, nil
		}
	}
	return domain.Identity{}, domain.ErrNotFound
}

func (m *memIdentities) GetOrCreate(_ context.Context, userID uuid.UUID, name string, now time.Time) (domain.Identity, bool, error) {
	for _, id := range m.items {
		if id.UserID == userID && id.Name == name {
			return id, false, nil
		}
	}
	identity := domain.Identity{IdentityID: uuid.New(), UserID: userID, Name: name, IsDefault: true, CreatedAt: now}
	m.items = append(m.items, identity)
	return identity, true, nil
}

type memTrustedRoots struct{ items map[string]bool }

func (m *memTrustedRoots) Upsert(_ context.Context, identityID uuid.UUID, trustRoot string, _ time.Time) error {
	m.items[identityID.String()+"|"+trustRoot] = true
	return nil
}

func (m *memTrustedRoots) Exists(_ context.Context, identityID uuid.UUID, trustRoot string) (bool, error) {
	return m.items[identityID.String()+"|"+trustRoot], nil
}

type memUserLog struct{ entries []domain.UserLogEntry }

func (m *memUserLog) Append(_ context.Context, entry domain.UserLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type memKV struct{ values map[string]string }

func (m *memKV) Get(_ context.Context, key string) (string, error) { return m.values[key], nil }
func (m *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}

type memPending struct{ items map[string]domain.PendingAuthRequest }

func (m *memPending) Put(_ context.Context, sessionID string, req domain.PendingAuthRequest, _ time.Duration) error {
	m.items[sessionID] = req
	return nil
}

func (m *memPending) Get(_ context.Context, sessionID string) (*domain.PendingAuthRequest, error) {
	req, ok := m.items[sessionID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (m *memPending) Delete(_ context.Context, sessionID string) error {
	delete(m.items, sessionID)
	return nil
}

type memConsent struct{ items map[string]bool }

func (m *memConsent) PutDecision(_ context.Context, sessionID, trustKey string, _ time.Duration) error {
	m.items[sessionID+"|"+trustKey] = true
	return nil
}

func (m *memConsent) HasDecision(_ context.Context, sessionID, trustKey string) (bool, error) {
	return m.items[sessionID+"|"+trustKey], nil
}

func (m *memConsent) DeleteAll(_ context.Context, sessionID string) error {
	for key := range m.items {
		if len(key) > len(sessionID) && key[:len(sessionID)] == sessionID {
			delete(m.items, key)
		}
	}
	return nil
}

type memAssocs struct {
	items   map[string]openid.Association
	private *openid.Association
}

func (m *memAssocs) Put(_ context.Context, assoc openid.Association, _ time.Duration) error {
	m.items[assoc.Handle] = assoc
	return nil
}

func (m *memAssocs) Get(_ context.Context, handle string) (*openid.Association, error) {
	assoc, ok := m.items[handle]
	if !ok {
		return nil, nil
	}
	return &assoc, nil
}

func (m *memAssocs) Delete(_ context.Context, handle string) error {
	delete(m.items, handle)
	return nil
}

func (m *memAssocs) PutPrivate(_ context.Context, assoc openid.Association, _ time.Duration) error {
	m.private = &assoc
	return nil
}

func (m *memAssocs) GetPrivate(context.Context) (*openid.Association, error) { return m.private, nil }

type memFingerprinter struct{}

func (memFingerprinter) Lookup(context.Context, string) (domain.Observation, error) {
	return domain.Observation{}, domain.ErrNoFingerprint
}

type memDiscoverer struct{}

func (memDiscoverer) Validate(context.Context, string, string) domain.TrustRootValidation {
	return domain.TrustRootValid
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

type stubTickets struct{}

func (stubTickets) Issue(claims ports.TicketClaims) (string, error) {
	return "ticket-" + claims.Username, nil
}
func (stubTickets) Verify(string) (ports.TicketClaims, error) {
	return ports.TicketClaims{}, domain.ErrUnauthorized
}
func (stubTickets) VerificationKeys() map[string]string { return map[string]string{} }

type httpHarness struct {
	handler      *Handler
	browsers     *memBrowsers
	logins       *memLogins
	users        *memUsers
	browserUsers *memBrowserUsers
}

func newHTTPHarness() *httpHarness {
	browsers := &memBrowsers{items: map[uuid.UUID]*domain.Browser{}}
	logins := &memLogins{}
	users := &memUsers{items: map[string]domain.User{}}
	browserUsers := &memBrowserUsers{}
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ExternalURL:       "https://sso.example.com",
			LoginPath:         "/login",
			ThrottleWindow:    2 * time.Second,
			AuthLevelTTL:      12 * time.Hour,
			StrongLevelTTL:    4 * time.Hour,
			PendingRequestTTL: time.Hour,
			ConsentTTL:        24 * time.Hour,
			TicketTTL:         2 * time.Minute,
			AssociationTTL:    6 * time.Hour,
		},
		Browsers:      browsers,
		Logins:        logins,
		BrowserUsers:  browserUsers,
		Fingerprints:  memFingerprints{},
		Users:         users,
		Identities:    &memIdentities{},
		TrustedRoots:  &memTrustedRoots{items: map[string]bool{}},
		UserLog:       &memUserLog{},
		Debounce:      &memKV{values: map[string]string{}},
		Pending:       &memPending{items: map[string]domain.PendingAuthRequest{}},
		Consent:       &memConsent{items: map[string]bool{}},
		Associations:  &memAssocs{items: map[string]openid.Association{}},
		Fingerprinter: memFingerprinter{},
		Discoverer:    memDiscoverer{},
		Hasher:        plainHasher{},
		Tickets:       stubTickets{},
	})
	return &httpHarness{
		handler:      NewHandler(svc, Config{ServerHeader: "sso-frontend-test"}),
		browsers:     browsers,
		logins:       logins,
		users:        users,
		browserUsers: browserUsers,
	}
}

func (h *httpHarness) addUser(username string) domain.User {
	user := domain.User{
		UserID:       uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed:correct horse",
		IsActive:     true,
	}
	h.users.items[username] = user
	return user
}

func (h *httpHarness) addBrowser(remember bool) domain.Browser {
	b, _ := h.browsers.Create(context.Background(), ports.BrowserCreateParams{
		PublicID:  uuid.NewString(),
		SessionID: uuid.NewString(),
		UserAgent: "test-agent", RememberBrowser: remember,
		CreatedAt: time.Now().UTC(),
	})
	return b
}
