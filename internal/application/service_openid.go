package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/openid"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// Endpoint paths shared between the responder and the router.
const (
	ServerPath         = "/openid/"
	XRDSPath           = "/openid/xrds/"
	DecidePath         = "/openid/decide/"
	IdentityPathPrefix = "/openid/identity/"
)

// OpenIDResultKind tags what the HTTP layer should render.
type OpenIDResultKind int

const (
	// OpenIDInfoPage renders the discovery/info page; a mode-less request is
	// not an error.
	OpenIDInfoPage OpenIDResultKind = iota
	OpenIDRedirect
	OpenIDFormPost
	OpenIDDirect
	OpenIDErrorPage
	OpenIDDecidePage
)

// OpenIDResult is the tagged outcome of a responder operation.
type OpenIDResult struct {
	Kind OpenIDResultKind

	RedirectURL string

	FormAction string
	FormFields map[string]string

	Body   []byte
	Status int

	Title   string
	Message string

	Info   *OpenIDInfo
	Decide *DecideData

	// Browser is set when the responder had to mint a browser record to hold
	// session state; the HTTP layer adopts it so cookies get issued.
	Browser *domain.Browser
}

// OpenIDInfo is the data of the discovery/info page.
type OpenIDInfo struct {
	Host             string
	XRDSLocation     string
	OpenIDIdentifier string
	PageURL          string
}

// DecideData is the consent page payload.
type DecideData struct {
	TrustRoot      string
	TrustRootValid domain.TrustRootValidation
	ReturnTo       string
	Identity       string
	SReg           map[string]string
}

// ServerInput is one request against the OP endpoint, GET or POST.
type ServerInput struct {
	Browser    *domain.Browser
	Form       url.Values
	RequestURI string
	UserAgent  string
	RemoteIP   string
}

// DecideInput is one request against the consent page.
type DecideInput struct {
	Browser  *domain.Browser
	Method   string
	Form     url.Values
	RemoteIP string
}

func (s *Service) opEndpoint() string {
	return strings.TrimSuffix(s.cfg.ExternalURL, "/") + ServerPath
}

// IdentityURL builds the canonical URL of an identity name.
func (s *Service) IdentityURL(name string) string {
	return strings.TrimSuffix(s.cfg.ExternalURL, "/") + IdentityPathPrefix + name
}

// HandleServerRequest runs the responder state machine for the OP endpoint:
// decode (in-band or session-resumed), authorize, and either answer, redirect
// to consent, or fail per protocol.
func (s *Service) HandleServerRequest(ctx context.Context, in ServerInput) (OpenIDResult, error) {
	now := s.nowFn()

	msg := openid.Decode(in.Form)
	stashedValidation := domain.TrustRootValidation("")
	fromStash := false
	if msg == nil && in.Browser != nil {
		p, err := s.pending.Get(ctx, in.Browser.SessionID)
		if err != nil {
			appLogger().WarnContext(ctx, "pending request read failed",
				"operation", "openid_server",
				"outcome", "degraded",
				"error", err.Error(),
			)
		} else if p != nil {
			if resumed := openid.DecodeMap(p.Raw); resumed != nil {
				msg = resumed
				stashedValidation = p.TrustRootValid
				fromStash = true
				if err := s.pending.Delete(ctx, in.Browser.SessionID); err != nil {
					appLogger().WarnContext(ctx, "pending request delete failed",
						"operation", "openid_server",
						"outcome", "degraded",
						"error", err.Error(),
					)
				}
			}
		}
	}

	if msg == nil {
		return s.infoResult(ctx, in, now), nil
	}

	if !msg.IsBrowserMode() {
		return s.handleDirect(ctx, msg, now)
	}
	if err := msg.ValidateCheckID(); err != nil {
		appLogger().WarnContext(ctx, "malformed checkid request",
			"operation", "openid_server",
			"outcome", "rejected",
			"error", err.Error(),
		)
		return OpenIDResult{Kind: OpenIDErrorPage, Title: "Error", Message: "Malformed OpenID request."}, nil
	}

	user := s.authenticatedUser(ctx, in.Browser, now)
	if user == nil {
		appLogger().InfoContext(ctx, "no local authentication, sending landing page",
			"operation", "openid_server",
			"outcome", "landing",
			"trust_root", msg.TrustRoot(),
		)
		return s.landingResult(ctx, in, msg)
	}

	identity, err := s.resolveIdentity(ctx, *user, msg.Identity())
	if err != nil {
		return OpenIDResult{}, err
	}

	trustRootValid := stashedValidation
	if !fromStash {
		trustRootValid = s.discoverer.Validate(ctx, msg.TrustRoot(), msg.ReturnTo())
	}

	validated := false
	for _, prefix := range s.cfg.TrustedRootPrefixes {
		if strings.HasPrefix(msg.TrustRoot(), prefix) {
			validated = true
			break
		}
	}
	if s.cfg.FailedDiscoveryAsValid {
		if trustRootValid == domain.TrustRootDiscoveryFailed {
			validated = true
		}
	} else if in.Browser != nil {
		consented, err := s.consent.HasDecision(ctx, in.Browser.SessionID, trustKey(msg))
		if err != nil {
			appLogger().WarnContext(ctx, "consent store read failed",
				"operation", "openid_server",
				"outcome", "degraded",
				"error", err.Error(),
			)
		} else if consented {
			validated = true
		}
	}

	authorized, err := s.trustedRoots.Exists(ctx, identity.IdentityID, msg.TrustRoot())
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("check trusted root: %w", err)
	}

	if authorized && (validated || trustRootValid == domain.TrustRootValid) {
		return s.answerPositive(ctx, in, msg, *user, identity, now)
	}
	if msg.Immediate() {
		// The synchronous contract offers no safe degraded response here.
		return OpenIDResult{}, domain.ErrImmediateUnsupported
	}

	result, browser, err := s.stashPending(ctx, in, msg, trustRootValid)
	if err != nil {
		return OpenIDResult{}, err
	}
	appLogger().InfoContext(ctx, "redirecting to decide page",
		"operation", "openid_server",
		"outcome", "decide",
		"trust_root", msg.TrustRoot(),
	)
	result.Kind = OpenIDRedirect
	result.RedirectURL = DecidePath
	result.Browser = browser
	return result, nil
}

// HandleDecide drives the consent page: render on GET, transition on POST
// gated by the decide_page marker field.
func (s *Service) HandleDecide(ctx context.Context, in DecideInput) (OpenIDResult, error) {
	now := s.nowFn()
	if in.Browser == nil {
		return OpenIDResult{Kind: OpenIDErrorPage, Title: "Error", Message: "No pending authentication request."}, nil
	}

	p, err := s.pending.Get(ctx, in.Browser.SessionID)
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("load pending request: %w", err)
	}
	if p == nil {
		return OpenIDResult{Kind: OpenIDErrorPage, Title: "Error", Message: "No pending authentication request."}, nil
	}
	msg := openid.DecodeMap(p.Raw)
	if msg == nil {
		_ = s.pending.Delete(ctx, in.Browser.SessionID)
		return OpenIDResult{Kind: OpenIDErrorPage, Title: "Error", Message: "No pending authentication request."}, nil
	}

	user := s.authenticatedUser(ctx, in.Browser, now)
	if user == nil {
		return s.landingResult(ctx, ServerInput{
			Browser:    in.Browser,
			RequestURI: DecidePath,
			RemoteIP:   in.RemoteIP,
		}, msg)
	}

	identity, err := s.resolveIdentity(ctx, *user, msg.Identity())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIdentityURL) {
			return OpenIDResult{Kind: OpenIDErrorPage, Title: "Error", Message: "You are signed in but you don't have OpenID here!"}, nil
		}
		return OpenIDResult{}, err
	}

	if in.Method == http.MethodPost && in.Form.Get("decide_page") != "" {
		if in.Form.Get("cancel") != "" {
			if err := s.pending.Delete(ctx, in.Browser.SessionID); err != nil {
				appLogger().WarnContext(ctx, "pending request delete failed",
					"operation", "openid_decide",
					"outcome", "degraded",
					"error", err.Error(),
				)
			}
			if err := s.consent.DeleteAll(ctx, in.Browser.SessionID); err != nil {
				appLogger().WarnContext(ctx, "consent purge failed",
					"operation", "openid_decide",
					"outcome", "degraded",
					"error", err.Error(),
				)
			}
			appLogger().InfoContext(ctx, "consent cancelled",
				"operation", "openid_decide",
				"outcome", "cancelled",
				"trust_root", msg.TrustRoot(),
			)
			return OpenIDResult{Kind: OpenIDRedirect, RedirectURL: "/"}, nil
		}

		if err := s.trustedRoots.Upsert(ctx, identity.IdentityID, msg.TrustRoot(), now); err != nil {
			return OpenIDResult{}, fmt.Errorf("upsert trusted root: %w", err)
		}
		if !s.cfg.FailedDiscoveryAsValid {
			if err := s.consent.PutDecision(ctx, in.Browser.SessionID, trustKey(msg), s.cfg.ConsentTTL); err != nil {
				appLogger().WarnContext(ctx, "consent store write failed",
					"operation", "openid_decide",
					"outcome", "degraded",
					"error", err.Error(),
				)
			}
		}
		appLogger().InfoContext(ctx, "trust root consented",
			"operation", "openid_decide",
			"outcome", "accepted",
			"trust_root", msg.TrustRoot(),
			"username", user.Username,
		)
		return OpenIDResult{Kind: OpenIDRedirect, RedirectURL: ServerPath}, nil
	}

	return OpenIDResult{
		Kind: OpenIDDecidePage,
		Decide: &DecideData{
			TrustRoot:      msg.TrustRoot(),
			TrustRootValid: p.TrustRootValid,
			ReturnTo:       msg.ReturnTo(),
			Identity:       s.IdentityURL(identity.Name),
			SReg:           s.sregPayload(*user, []string{"nickname", "email", "fullname"}),
		},
	}, nil
}

// infoResult renders the discovery/info page for mode-less requests.
func (s *Service) infoResult(ctx context.Context, in ServerInput, now time.Time) OpenIDResult {
	info := &OpenIDInfo{
		Host:         s.cfg.ExternalURL,
		XRDSLocation: strings.TrimSuffix(s.cfg.ExternalURL, "/") + XRDSPath,
	}
	if user := s.authenticatedUser(ctx, in.Browser, now); user != nil {
		info.OpenIDIdentifier = s.IdentityURL(user.Username)
	} else {
		info.PageURL = strings.TrimSuffix(s.cfg.ExternalURL, "/") + in.RequestURI
	}
	return OpenIDResult{Kind: OpenIDInfoPage, Info: info}
}

// landingResult stashes the request and redirects to sign-in, carrying the
// original location in the next parameter with slashes left readable.
func (s *Service) landingResult(ctx context.Context, in ServerInput, msg *openid.Message) (OpenIDResult, error) {
	result, browser, err := s.stashPending(ctx, in, msg, "")
	if err != nil {
		return OpenIDResult{}, err
	}
	next := strings.ReplaceAll(url.QueryEscape(in.RequestURI), "%2F", "/")
	result.Kind = OpenIDRedirect
	result.RedirectURL = s.cfg.LoginPath + "?next=" + next
	result.Browser = browser
	return result, nil
}

// stashPending writes the decoded request into the session-scoped store,
// minting a browser record first when the caller has none yet.
func (s *Service) stashPending(ctx context.Context, in ServerInput, msg *openid.Message, validation domain.TrustRootValidation) (OpenIDResult, *domain.Browser, error) {
	browser := in.Browser
	var minted *domain.Browser
	if browser == nil {
		created, err := s.CreateBrowser(ctx, in.UserAgent, false)
		if err != nil {
			return OpenIDResult{}, nil, err
		}
		browser = &created
		minted = &created
	}
	err := s.pending.Put(ctx, browser.SessionID, domain.PendingAuthRequest{
		Raw:            msg.Fields(),
		TrustRootValid: validation,
		StashedAt:      s.nowFn(),
	}, s.cfg.PendingRequestTTL)
	if err != nil {
		return OpenIDResult{}, nil, fmt.Errorf("stash pending request: %w", err)
	}
	return OpenIDResult{}, minted, nil
}

// answerPositive issues the signed assertion, records the relying-party
// login, and encodes the indirect response.
func (s *Service) answerPositive(ctx context.Context, in ServerInput, msg *openid.Message, user domain.User, identity domain.Identity, now time.Time) (OpenIDResult, error) {
	identityURL := s.IdentityURL(identity.Name)
	if claim := msg.Identity(); claim != "" && claim != domain.IdentifierSelect && claim != identityURL {
		appLogger().WarnContext(ctx, "claimed identity does not match resolved identity",
			"operation", "openid_server",
			"outcome", "rejected",
			"claimed", claim,
			"resolved", identityURL,
		)
		return OpenIDResult{Kind: OpenIDErrorPage, Title: "Invalid identity URL", Message: "The claimed identifier does not belong to the signed-in user."}, nil
	}
	claimedID := msg.ClaimedID()
	if claimedID == "" || claimedID == domain.IdentifierSelect {
		claimedID = identityURL
	}

	resp, err := openid.NewPositiveAssertion(s.opEndpoint(), claimedID, identityURL, msg.ReturnTo(), now)
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("build assertion: %w", err)
	}

	if sreg := s.sregPayload(user, msg.SRegRequested()); len(sreg) > 0 {
		resp.AddExtension("sreg", openid.NSSReg, sreg)
	}
	if s.cfg.AXEnabled {
		if ax := s.axPayload(user, msg.AXFetchTypes()); len(ax) > 0 {
			resp.AddExtension("ax", openid.NSAX, ax)
		}
	}

	assoc, invalidate, err := s.signingAssociation(ctx, msg.AssocHandle(), now)
	if err != nil {
		return OpenIDResult{}, err
	}
	resp.Sign(assoc, invalidate)

	if in.Browser != nil {
		err := s.logins.Upsert(ctx, ports.BrowserLoginUpsertParams{
			UserID:         user.UserID,
			BrowserID:      in.Browser.BrowserID,
			Provider:       "openid",
			RemoteService:  msg.TrustRoot(),
			ExpiresSession: true,
			AuthTimestamp:  now,
		})
		if err != nil {
			return OpenIDResult{}, fmt.Errorf("upsert browser login: %w", err)
		}
		s.appendUserLog(ctx, user.UserID, in.Browser.BrowserID, in.RemoteIP,
			"Signed in with OpenID to "+msg.TrustRoot(), "share-square-o")
	}

	appLogger().InfoContext(ctx, "positive assertion issued",
		"operation", "openid_server",
		"outcome", "success",
		"username", user.Username,
		"identity", identityURL,
		"trust_root", msg.TrustRoot(),
	)

	needsForm, err := resp.NeedsFormPost()
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("encode assertion: %w", err)
	}
	if needsForm {
		return OpenIDResult{Kind: OpenIDFormPost, FormAction: resp.ReturnTo(), FormFields: resp.Fields()}, nil
	}
	target, err := resp.RedirectURL()
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("encode assertion: %w", err)
	}
	return OpenIDResult{Kind: OpenIDRedirect, RedirectURL: target}, nil
}

// handleDirect answers the non-browser modes: associate and
// check_authentication.
func (s *Service) handleDirect(ctx context.Context, msg *openid.Message, now time.Time) (OpenIDResult, error) {
	switch msg.Mode() {
	case openid.ModeAssociate:
		fields, assoc, err := openid.HandleAssociate(msg, now, s.cfg.AssociationTTL)
		if err != nil {
			return OpenIDResult{}, fmt.Errorf("associate: %w", err)
		}
		if assoc != nil {
			if err := s.assocs.Put(ctx, *assoc, s.cfg.AssociationTTL); err != nil {
				return OpenIDResult{}, fmt.Errorf("store association: %w", err)
			}
		}
		return OpenIDResult{Kind: OpenIDDirect, Status: http.StatusOK, Body: openid.KVEncode(fields)}, nil

	case openid.ModeCheckAuth:
		return s.checkAuthentication(ctx, msg, now)

	default:
		body := openid.KVEncode(map[string]string{
			"ns":    openid.NS,
			"error": "unsupported mode " + msg.Mode(),
		})
		return OpenIDResult{Kind: OpenIDDirect, Status: http.StatusBadRequest, Body: body}, nil
	}
}

// checkAuthentication verifies a stateless assertion against the private
// association, per the 2.0 verification flow (mode is reset to id_res before
// recomputing the signature).
func (s *Service) checkAuthentication(ctx context.Context, msg *openid.Message, now time.Time) (OpenIDResult, error) {
	fields := msg.Fields()
	fields["mode"] = openid.ModeIDRes

	isValid := false
	assoc, err := s.assocs.Get(ctx, msg.AssocHandle())
	if err != nil {
		return OpenIDResult{}, fmt.Errorf("load association: %w", err)
	}
	if assoc != nil && assoc.Private && assoc.ExpiresAt.After(now) {
		signed := strings.Split(fields["signed"], ",")
		isValid = assoc.Verify(fields, signed, fields["sig"])
	}

	out := map[string]string{
		"ns":       openid.NS,
		"is_valid": "false",
	}
	if isValid {
		out["is_valid"] = "true"
	}
	if handle := msg.Get("invalidate_handle"); handle != "" {
		known, err := s.assocs.Get(ctx, handle)
		if err == nil && known == nil {
			out["invalidate_handle"] = handle
		}
	}
	return OpenIDResult{Kind: OpenIDDirect, Status: http.StatusOK, Body: openid.KVEncode(out)}, nil
}

// signingAssociation picks the relying party's shared association when the
// presented handle is live, falling back to the provider's private
// association with the stale handle flagged for invalidation.
func (s *Service) signingAssociation(ctx context.Context, handle string, now time.Time) (openid.Association, string, error) {
	invalidate := ""
	if handle != "" {
		assoc, err := s.assocs.Get(ctx, handle)
		if err != nil {
			return openid.Association{}, "", fmt.Errorf("load association: %w", err)
		}
		if assoc != nil && !assoc.Private && assoc.ExpiresAt.After(now) {
			return *assoc, "", nil
		}
		invalidate = handle
	}
	private, err := s.privateAssociation(ctx, now)
	if err != nil {
		return openid.Association{}, "", err
	}
	return private, invalidate, nil
}

func (s *Service) privateAssociation(ctx context.Context, now time.Time) (openid.Association, error) {
	assoc, err := s.assocs.GetPrivate(ctx)
	if err != nil {
		return openid.Association{}, fmt.Errorf("load private association: %w", err)
	}
	if assoc != nil && assoc.ExpiresAt.After(now.Add(time.Hour)) {
		return *assoc, nil
	}
	fresh, err := openid.NewAssociation(openid.AssocHMACSHA256, true, now, s.cfg.AssociationTTL)
	if err != nil {
		return openid.Association{}, fmt.Errorf("mint private association: %w", err)
	}
	if err := s.assocs.PutPrivate(ctx, fresh, s.cfg.AssociationTTL); err != nil {
		return openid.Association{}, fmt.Errorf("store private association: %w", err)
	}
	if err := s.assocs.Put(ctx, fresh, s.cfg.AssociationTTL); err != nil {
		return openid.Association{}, fmt.Errorf("store private association handle: %w", err)
	}
	return fresh, nil
}

// resolveIdentity selects the identity an assertion should bind. Explicit
// claims must match a canonical identity URL; the identifier_select sentinel
// picks the designated default when exactly one exists, else any existing
// identity. A principal with no identity yet gets one created from their
// canonical name.
func (s *Service) resolveIdentity(ctx context.Context, user domain.User, claim string) (domain.Identity, error) {
	identities, err := s.identities.ListByUser(ctx, user.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("list identities: %w", err)
	}
	for _, identity := range identities {
		if claim == s.IdentityURL(identity.Name) {
			return identity, nil
		}
	}
	if claim == domain.IdentifierSelect || claim == "" {
		var defaults []domain.Identity
		for _, identity := range identities {
			if identity.IsDefault {
				defaults = append(defaults, identity)
			}
		}
		if len(defaults) == 1 {
			return defaults[0], nil
		}
		if len(identities) > 0 {
			return identities[0], nil
		}
	}

	identity, created, err := s.identities.GetOrCreate(ctx, user.UserID, user.Username, s.nowFn())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	if created {
		appLogger().InfoContext(ctx, "openid identity created",
			"operation", "resolve_identity",
			"outcome", "created",
			"username", user.Username,
		)
	}
	return identity, nil
}

// ProviderXRDS renders the provider discovery document.
func (s *Service) ProviderXRDS() ([]byte, error) {
	return openid.ProviderXRDS(s.opEndpoint(), s.cfg.AXEnabled)
}

// IdentityXRDS renders the discovery document served from identity pages.
func (s *Service) IdentityXRDS() ([]byte, error) {
	return openid.IdentityXRDS(s.opEndpoint())
}

// XRDSLocation is the advertised provider XRDS URL.
func (s *Service) XRDSLocation() string {
	return strings.TrimSuffix(s.cfg.ExternalURL, "/") + XRDSPath
}

// LookupIdentity resolves an identity page name. Unknown names report
// domain.ErrNotFound.
func (s *Service) LookupIdentity(ctx context.Context, name string) (domain.Identity, error) {
	return s.identities.GetByName(ctx, name)
}

// authenticatedUser loads the principal when the browser binding carries at
// least basic strength; nil otherwise.
func (s *Service) authenticatedUser(ctx context.Context, browser *domain.Browser, now time.Time) *domain.User {
	if browser == nil || !browser.IsAuthenticated(now) {
		return nil
	}
	user, err := s.users.GetByID(ctx, *browser.UserID)
	if err != nil {
		appLogger().WarnContext(ctx, "bound user missing",
			"operation", "authenticated_user",
			"outcome", "degraded",
			"public_id", browser.PublicID,
			"error", err.Error(),
		)
		return nil
	}
	if !user.IsActive {
		return nil
	}
	return &user
}

func (s *Service) sregPayload(user domain.User, requested []string) map[string]string {
	out := make(map[string]string)
	for _, name := range requested {
		switch name {
		case "nickname":
			out["nickname"] = user.Username
		case "email":
			if user.Email != "" {
				out["email"] = user.Email
			}
		case "fullname":
			if full := user.FullName(); full != "" {
				out["fullname"] = full
			}
		}
	}
	return out
}

// axPayload answers an AX fetch request for the attribute types this
// provider understands.
func (s *Service) axPayload(user domain.User, types map[string]string) map[string]string {
	if len(types) == 0 {
		return nil
	}
	out := map[string]string{"mode": "fetch_response"}
	answered := false
	for alias, typeURI := range types {
		var value string
		switch typeURI {
		case "http://axschema.org/contact/email", "http://schema.openid.net/contact/email":
			value = user.Email
		case "http://axschema.org/namePerson":
			value = user.FullName()
		case "http://axschema.org/namePerson/first":
			value = user.FirstName
		case "http://axschema.org/namePerson/last":
			value = user.LastName
		case "http://axschema.org/namePerson/friendly":
			value = user.Username
		}
		if value == "" {
			continue
		}
		out["type."+alias] = typeURI
		out["value."+alias] = value
		answered = true
	}
	if !answered {
		return nil
	}
	return out
}

// trustKey derives the session-consent key from the pending request, so a
// decision covers exactly this (trust root, return_to) pair.
func trustKey(msg *openid.Message) string {
	sum := sha256.Sum256([]byte(msg.TrustRoot() + "\x00" + msg.ReturnTo()))
	return "trust-" + hex.EncodeToString(sum[:8])
}
