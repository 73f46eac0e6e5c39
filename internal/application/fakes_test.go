package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/openid"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeBrowsers struct {
	items map[uuid.UUID]*domain.Browser
}

func newFakeBrowsers() *fakeBrowsers {
	return &fakeBrowsers{items: map[uuid.UUID]*domain.Browser{}}
}

func (f *fakeBrowsers) GetByPublicID(_ context.Context, publicID string) (domain.Browser, error) {
	for _, b := range f.items {
		if b.PublicID == publicID {
			return *b, nil
		}
	}
	return domain.Browser{}, domain.ErrNotFound
}

func (f *fakeBrowsers) Create(_ context.Context, params ports.BrowserCreateParams) (domain.Browser, error) {
	b := domain.Browser{
		BrowserID:       uuid.New(),
		PublicID:        params.PublicID,
		SessionID:       params.SessionID,
		UserAgent:       params.UserAgent,
		RememberBrowser: params.RememberBrowser,
		AuthLevel:       domain.LevelUnauth,
		AuthState:       domain.StateRequestBasic,
		CreatedAt:       params.CreatedAt,
		UpdatedAt:       params.CreatedAt,
	}
	f.items[b.BrowserID] = &b
	return b, nil
}

func (f *fakeBrowsers) UpdateSessionID(_ context.Context, browserID uuid.UUID, sessionID string, at time.Time) error {
	b, ok := f.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.SessionID = sessionID
	b.UpdatedAt = at
	return nil
}

func (f *fakeBrowsers) UpdateRemember(_ context.Context, browserID uuid.UUID, remember bool, at time.Time) error {
	b, ok := f.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.RememberBrowser = remember
	b.UpdatedAt = at
	return nil
}

func (f *fakeBrowsers) UpdateAuth(_ context.Context, browserID uuid.UUID, userID *uuid.UUID, level domain.AuthLevel, levelExpiresAt *time.Time, state domain.AuthState, at time.Time) error {
	b, ok := f.items[browserID]
	if !ok {
		return domain.ErrNotFound
	}
	b.UserID = userID
	b.AuthLevel = level
	b.AuthLevelExpiresAt = levelExpiresAt
	b.AuthState = state
	b.UpdatedAt = at
	return nil
}

type fakeLogins struct {
	items []domain.BrowserLogin
}

func (f *fakeLogins) Upsert(_ context.Context, params ports.BrowserLoginUpsertParams) error {
	for i, l := range f.items {
		if l.UserID == params.UserID && l.BrowserID == params.BrowserID &&
			l.Provider == params.Provider && l.RemoteService == params.RemoteService {
			f.items[i].SignedOut = false
			f.items[i].ExpiresSession = params.ExpiresSession
			f.items[i].AuthTimestamp = params.AuthTimestamp
			return nil
		}
	}
	f.items = append(f.items, domain.BrowserLogin{
		LoginID:        uuid.New(),
		UserID:         params.UserID,
		BrowserID:      params.BrowserID,
		Provider:       params.Provider,
		RemoteService:  params.RemoteService,
		ExpiresSession: params.ExpiresSession,
		AuthTimestamp:  params.AuthTimestamp,
	})
	return nil
}

func (f *fakeLogins) MarkSessionLoginsSignedOut(_ context.Context, browserID uuid.UUID, at time.Time) ([]domain.BrowserLogin, error) {
	var flipped []domain.BrowserLogin
	for i, l := range f.items {
		if l.BrowserID == browserID && l.ExpiresSession && !l.SignedOut {
			f.items[i].SignedOut = true
			f.items[i].UpdatedAt = at
			flipped = append(flipped, f.items[i])
		}
	}
	return flipped, nil
}

func (f *fakeLogins) ListByBrowser(_ context.Context, browserID uuid.UUID) ([]domain.BrowserLogin, error) {
	var out []domain.BrowserLogin
	for _, l := range f.items {
		if l.BrowserID == browserID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeBrowserUsers struct {
	calls []ports.LastSeenParams
}

func (f *fakeBrowserUsers) UpsertLastSeen(_ context.Context, params ports.LastSeenParams) error {
	f.calls = append(f.calls, params)
	return nil
}

func (f *fakeBrowserUsers) Get(context.Context, uuid.UUID, uuid.UUID) (domain.BrowserUser, error) {
	return domain.BrowserUser{}, domain.ErrNotFound
}

type fakeFingerprints struct {
	items []domain.FingerprintObservation
}

func (f *fakeFingerprints) LatestForBrowser(_ context.Context, browserID uuid.UUID) (domain.FingerprintObservation, error) {
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].BrowserID == browserID {
			return f.items[i], nil
		}
	}
	return domain.FingerprintObservation{}, domain.ErrNotFound
}

func (f *fakeFingerprints) Create(_ context.Context, obs domain.FingerprintObservation) (domain.FingerprintObservation, error) {
	obs.ObservationID = uuid.New()
	f.items = append(f.items, obs)
	return obs, nil
}

func (f *fakeFingerprints) Update(_ context.Context, obs domain.FingerprintObservation) error {
	for i, existing := range f.items {
		if existing.ObservationID == obs.ObservationID {
			f.items[i] = obs
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeFingerprints) ListByBrowser(_ context.Context, browserID uuid.UUID, limit int) ([]domain.FingerprintObservation, error) {
	var out []domain.FingerprintObservation
	for _, obs := range f.items {
		if obs.BrowserID == browserID {
			out = append(out, obs)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUsers struct {
	items map[uuid.UUID]domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{items: map[uuid.UUID]domain.User{}} }

func (f *fakeUsers) add(user domain.User) domain.User {
	if user.UserID == uuid.Nil {
		user.UserID = uuid.New()
	}
	f.items[user.UserID] = user
	return user
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range f.items {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	u, ok := f.items[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

type fakeIdentities struct {
	items []domain.Identity
}

func (f *fakeIdentities) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Identity, error) {
	var out []domain.Identity
	for _, id := range f.items {
		if id.UserID == userID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeIdentities) GetByName(_ context.Context, name string) (domain.Identity, error) {
	for _, id := range f.items {
		if id.Name == name {
			return id, nil
		}
	}
	return domain.Identity{}, domain.ErrNotFound
}

func (f *fakeIdentities) GetOrCreate(_ context.Context, userID uuid.UUID, name string, now time.Time) (domain.Identity, bool, error) {
	for _, id := range f.items {
		if id.UserID == userID && id.Name == name {
			return id, false, nil
		}
	}
	existing := 0
	for _, id := range f.items {
		if id.UserID == userID {
			existing++
		}
	}
	identity := domain.Identity{
		IdentityID: uuid.New(),
		UserID:     userID,
		Name:       name,
		IsDefault:  existing == 0,
		CreatedAt:  now,
	}
	f.items = append(f.items, identity)
	return identity, true, nil
}

type fakeTrustedRoots struct {
	items map[string]bool
}

func newFakeTrustedRoots() *fakeTrustedRoots { return &fakeTrustedRoots{items: map[string]bool{}} }

func (f *fakeTrustedRoots) key(identityID uuid.UUID, root string) string {
	return identityID.String() + "|" + root
}

func (f *fakeTrustedRoots) Upsert(_ context.Context, identityID uuid.UUID, trustRoot string, _ time.Time) error {
	f.items[f.key(identityID, trustRoot)] = true
	return nil
}

func (f *fakeTrustedRoots) Exists(_ context.Context, identityID uuid.UUID, trustRoot string) (bool, error) {
	return f.items[f.key(identityID, trustRoot)], nil
}

type fakeUserLog struct {
	entries []domain.UserLogEntry
}

func (f *fakeUserLog) Append(_ context.Context, entry domain.UserLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDebounce struct {
	values map[string]string
}

func newFakeDebounce() *fakeDebounce { return &fakeDebounce{values: map[string]string{}} }

func (f *fakeDebounce) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeDebounce) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

type fakePending struct {
	items map[string]domain.PendingAuthRequest
}

func newFakePending() *fakePending { return &fakePending{items: map[string]domain.PendingAuthRequest{}} }

func (f *fakePending) Put(_ context.Context, sessionID string, req domain.PendingAuthRequest, _ time.Duration) error {
	f.items[sessionID] = req
	return nil
}

func (f *fakePending) Get(_ context.Context, sessionID string) (*domain.PendingAuthRequest, error) {
	req, ok := f.items[sessionID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (f *fakePending) Delete(_ context.Context, sessionID string) error {
	delete(f.items, sessionID)
	return nil
}

type fakeConsent struct {
	items map[string]map[string]bool
}

func newFakeConsent() *fakeConsent { return &fakeConsent{items: map[string]map[string]bool{}} }

func (f *fakeConsent) PutDecision(_ context.Context, sessionID, trustKey string, _ time.Duration) error {
	if f.items[sessionID] == nil {
		f.items[sessionID] = map[string]bool{}
	}
	f.items[sessionID][trustKey] = true
	return nil
}

func (f *fakeConsent) HasDecision(_ context.Context, sessionID, trustKey string) (bool, error) {
	return f.items[sessionID][trustKey], nil
}

func (f *fakeConsent) DeleteAll(_ context.Context, sessionID string) error {
	delete(f.items, sessionID)
	return nil
}

type fakeAssocs struct {
	items   map[string]openid.Association
	private *openid.Association
}

func newFakeAssocs() *fakeAssocs { return &fakeAssocs{items: map[string]openid.Association{}} }

func (f *fakeAssocs) Put(_ context.Context, assoc openid.Association, _ time.Duration) error {
	f.items[assoc.Handle] = assoc
	return nil
}

func (f *fakeAssocs) Get(_ context.Context, handle string) (*openid.Association, error) {
	assoc, ok := f.items[handle]
	if !ok {
		return nil, nil
	}
	return &assoc, nil
}

func (f *fakeAssocs) Delete(_ context.Context, handle string) error {
	delete(f.items, handle)
	return nil
}

func (f *fakeAssocs) PutPrivate(_ context.Context, assoc openid.Association, _ time.Duration) error {
	f.private = &assoc
	return nil
}

func (f *fakeAssocs) GetPrivate(context.Context) (*openid.Association, error) {
	return f.private, nil
}

type fakeFingerprinter struct {
	obs domain.Observation
	err error
}

func (f *fakeFingerprinter) Lookup(context.Context, string) (domain.Observation, error) {
	if f.err != nil {
		return domain.Observation{}, f.err
	}
	return f.obs, nil
}

type fakeDiscoverer struct {
	result domain.TrustRootValidation
	calls  int
}

func (f *fakeDiscoverer) Validate(context.Context, string, string) domain.TrustRootValidation {
	f.calls++
	return f.result
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("hash mismatch")
	}
	return nil
}

type fakeTickets struct {
	issued []ports.TicketClaims
}

func (f *fakeTickets) Issue(claims ports.TicketClaims) (string, error) {
	f.issued = append(f.issued, claims)
	return "ticket-" + claims.Username, nil
}

func (f *fakeTickets) Verify(token string) (ports.TicketClaims, error) {
	for _, claims := range f.issued {
		if token == "ticket-"+claims.Username {
			return claims, nil
		}
	}
	return ports.TicketClaims{}, domain.ErrUnauthorized
}

func (f *fakeTickets) VerificationKeys() map[string]string {
	return map[string]string{"test-key-1": "PEM"}
}

// testEnv bundles a service wired to in-memory fakes with the fakes exposed
// for assertions.
type testEnv struct {
	svc           *Service
	browsers      *fakeBrowsers
	logins        *fakeLogins
	browserUsers  *fakeBrowserUsers
	fingerprints  *fakeFingerprints
	users         *fakeUsers
	identities    *fakeIdentities
	trustedRoots  *fakeTrustedRoots
	userLog       *fakeUserLog
	debounce      *fakeDebounce
	pending       *fakePending
	consent       *fakeConsent
	assocs        *fakeAssocs
	fingerprinter *fakeFingerprinter
	discoverer    *fakeDiscoverer
	tickets       *fakeTickets
}

func newTestEnv(cfg Config) *testEnv {
	if cfg.ExternalURL == "" {
		cfg.ExternalURL = "https://sso.example.com"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.ThrottleWindow == 0 {
		cfg.ThrottleWindow = 2 * time.Second
	}
	if cfg.AuthLevelTTL == 0 {
		cfg.AuthLevelTTL = 12 * time.Hour
	}
	if cfg.StrongLevelTTL == 0 {
		cfg.StrongLevelTTL = 4 * time.Hour
	}
	if cfg.PendingRequestTTL == 0 {
		cfg.PendingRequestTTL = time.Hour
	}
	if cfg.ConsentTTL == 0 {
		cfg.ConsentTTL = 24 * time.Hour
	}
	if cfg.TicketTTL == 0 {
		cfg.TicketTTL = 2 * time.Minute
	}
	if cfg.AssociationTTL == 0 {
		cfg.AssociationTTL = 6 * time.Hour
	}

	env := &testEnv{
		browsers:      newFakeBrowsers(),
		logins:        &fakeLogins{},
		browserUsers:  &fakeBrowserUsers{},
		fingerprints:  &fakeFingerprints{},
		users:         newFakeUsers(),
		identities:    &fakeIdentities{},
		trustedRoots:  newFakeTrustedRoots(),
		userLog:       &fakeUserLog{},
		debounce:      newFakeDebounce(),
		pending:       newFakePending(),
		consent:       newFakeConsent(),
		assocs:        newFakeAssocs(),
		fingerprinter: &fakeFingerprinter{err: domain.ErrNoFingerprint},
		discoverer:    &fakeDiscoverer{result: domain.TrustRootInvalid},
		tickets:       &fakeTickets{},
	}
	env.svc = NewService(Dependencies{
		Config:        cfg,
		Browsers:      env.browsers,
		Logins:        env.logins,
		BrowserUsers:  env.browserUsers,
		Fingerprints:  env.fingerprints,
		Users:         env.users,
		Identities:    env.identities,
		TrustedRoots:  env.trustedRoots,
		UserLog:       env.userLog,
		Debounce:      env.debounce,
		Pending:       env.pending,
		Consent:       env.consent,
		Associations:  env.assocs,
		Fingerprinter: env.fingerprinter,
		Discoverer:    env.discoverer,
		Hasher:        fakeHasher{},
		Tickets:       env.tickets,
	})
	env.svc.nowFn = func() time.Time { return testNow }
	return env
}

func (e *testEnv) addUser(username string) domain.User {
	return e.users.add(domain.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hashed:correct horse",
		IsActive:     true,
	})
}

func (e *testEnv) addBrowser(remember bool) *domain.Browser {
	b, _ := e.browsers.Create(context.Background(), ports.BrowserCreateParams{
		PublicID:        uuid.NewString(),
		SessionID:       uuid.NewString(),
		UserAgent:       "test-agent",
		RememberBrowser: remember,
		CreatedAt:       testNow,
	})
	return &b
}

func (e *testEnv) bindUser(browser *domain.Browser, user domain.User, level domain.AuthLevel) {
	expires := testNow.Add(12 * time.Hour)
	_ = e.browsers.UpdateAuth(context.Background(), browser.BrowserID, &user.UserID, level, &expires, domain.StateAuthenticated, testNow)
	browser.UserID = &user.UserID
	browser.Username = user.Username
	browser.AuthLevel = level
	browser.AuthLevelExpiresAt = &expires
	browser.AuthState = domain.StateAuthenticated
}
