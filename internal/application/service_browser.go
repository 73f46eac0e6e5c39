package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// restartNotice is surfaced once when a non-remembered browser gets signed
// out after a detected restart.
const restartNotice = "According to our records, your browser was restarted. " +
	"Therefore, you were signed out. If this is your own computer, you can avoid " +
	"this by checking 'Remember this browser' below the sign-in form."

// SessionEvaluation is the outcome of validating a presented session cookie
// against the stored binding.
type SessionEvaluation struct {
	SignedOutLogins []domain.BrowserLogin
	LoggedOut       bool
	// Notice is a one-time user-facing message; empty when nothing happened.
	Notice string
}

// ResolveBrowser looks up the calling browser by its public identifier.
// Absent or unknown identifiers are a normal anonymous state: they are
// reported in the log and returned as (nil, nil), never as an error.
func (s *Service) ResolveBrowser(ctx context.Context, publicID, remoteIP string) (*domain.Browser, error) {
	if publicID == "" {
		return nil, nil
	}
	browser, err := s.browsers.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			appLogger().InfoContext(ctx, "unknown browser id",
				"operation", "resolve_browser",
				"outcome", "unknown",
				"public_id", publicID,
				"remote_ip", remoteIP,
			)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve browser: %w", err)
	}
	return &browser, nil
}

// CreateBrowser issues a fresh browser record with both tokens generated.
func (s *Service) CreateBrowser(ctx context.Context, userAgent string, remember bool) (domain.Browser, error) {
	browser, err := s.browsers.Create(ctx, ports.BrowserCreateParams{
		PublicID:        newBrowserToken(),
		SessionID:       newBrowserToken(),
		UserAgent:       userAgent,
		RememberBrowser: remember,
		CreatedAt:       s.nowFn(),
	})
	if err != nil {
		return domain.Browser{}, fmt.Errorf("create browser: %w", err)
	}
	return browser, nil
}

// EvaluateSession validates the presented session-scoped cookie against the
// stored session id. A mismatch means the browser was restarted: every
// session-scoped relying-party login is flipped to signed-out, and when the
// browser is not remembered the whole binding is logged out.
func (s *Service) EvaluateSession(ctx context.Context, browser *domain.Browser, presentedSessionID string) (SessionEvaluation, error) {
	if presentedSessionID != "" && presentedSessionID == browser.SessionID {
		browser.ValidSessionBID = true
		return SessionEvaluation{}, nil
	}
	browser.ValidSessionBID = false

	now := s.nowFn()
	signedOut, err := s.logins.MarkSessionLoginsSignedOut(ctx, browser.BrowserID, now)
	if err != nil {
		return SessionEvaluation{}, fmt.Errorf("sign out session logins: %w", err)
	}
	for _, login := range signedOut {
		appLogger().InfoContext(ctx, "session login signed out after session cookie disappeared",
			"operation", "evaluate_session",
			"outcome", "signed_out",
			"public_id", browser.PublicID,
			"provider", login.Provider,
			"remote_service", login.RemoteService,
		)
	}

	eval := SessionEvaluation{SignedOutLogins: signedOut}
	if !browser.RememberBrowser {
		appLogger().InfoContext(ctx, "browser restarted without remember flag, logging out",
			"operation", "evaluate_session",
			"outcome", "browser_restart",
			"public_id", browser.PublicID,
		)
		if err := s.LogoutBrowser(ctx, browser); err != nil {
			return SessionEvaluation{}, err
		}
		eval.LoggedOut = true
		eval.Notice = restartNotice
	}
	return eval, nil
}

// LogoutBrowser clears the authentication binding: user reference, level and
// state. The browser record itself survives so the public id stays stable.
func (s *Service) LogoutBrowser(ctx context.Context, browser *domain.Browser) error {
	now := s.nowFn()
	err := s.browsers.UpdateAuth(ctx, browser.BrowserID, nil, domain.LevelUnauth, nil, domain.StateRequestBasic, now)
	if err != nil {
		return fmt.Errorf("logout browser: %w", err)
	}
	browser.UserID = nil
	browser.Username = ""
	browser.AuthLevel = domain.LevelUnauth
	browser.AuthLevelExpiresAt = nil
	browser.AuthState = domain.StateRequestBasic
	return nil
}

// RegenerateSessionID rotates the session-scoped token. Callers invoke this
// on the response path whenever the inbound session cookie was absent or did
// not match, before headers are finalized.
func (s *Service) RegenerateSessionID(ctx context.Context, browser *domain.Browser) error {
	sessionID := newBrowserToken()
	if err := s.browsers.UpdateSessionID(ctx, browser.BrowserID, sessionID, s.nowFn()); err != nil {
		return fmt.Errorf("regenerate session id: %w", err)
	}
	appLogger().InfoContext(ctx, "session bid regenerated",
		"operation", "regenerate_session_id",
		"outcome", "success",
		"public_id", browser.PublicID,
	)
	browser.SessionID = sessionID
	return nil
}

// UpdateLastSeen records a sighting of the (user, browser) pair, debounced
// through the throttle cache so a busy tab cannot amplify writes. Passive
// sightings (heartbeat polling) land in their own field set.
func (s *Service) UpdateLastSeen(ctx context.Context, browser domain.Browser, remoteIP string, passive bool) error {
	if browser.UserID == nil {
		return nil
	}
	key := fmt.Sprintf("browser-location-last-update-%s-%s", browser.Username, browser.PublicID)
	cached, err := s.debounce.Get(ctx, key)
	if err != nil {
		// Cache trouble must never block the request; skip the write.
		appLogger().WarnContext(ctx, "last-seen debounce read failed",
			"operation", "update_last_seen",
			"outcome", "degraded",
			"error", err.Error(),
		)
		return nil
	}
	if cached == remoteIP {
		return nil
	}
	err = s.browserUsers.UpsertLastSeen(ctx, ports.LastSeenParams{
		UserID:    *browser.UserID,
		BrowserID: browser.BrowserID,
		RemoteIP:  remoteIP,
		Passive:   passive,
		SeenAt:    s.nowFn(),
	})
	if err != nil {
		return fmt.Errorf("upsert last seen: %w", err)
	}
	if err := s.debounce.Set(ctx, key, remoteIP, s.cfg.ThrottleWindow); err != nil {
		appLogger().WarnContext(ctx, "last-seen debounce write failed",
			"operation", "update_last_seen",
			"outcome", "degraded",
			"error", err.Error(),
		)
	}
	return nil
}

// ShouldTimesync reports whether the browser is due for a clock-offset
// measurement, tracked through the throttle cache.
func (s *Service) ShouldTimesync(ctx context.Context, publicID string) bool {
	if publicID == "" {
		return false
	}
	cached, err := s.debounce.Get(ctx, "timesync-at-"+publicID)
	if err != nil {
		return false
	}
	return cached == ""
}

// MarkTimesynced records a completed clock-offset measurement.
func (s *Service) MarkTimesynced(ctx context.Context, publicID string, window time.Duration) {
	if err := s.debounce.Set(ctx, "timesync-at-"+publicID, "done", window); err != nil {
		appLogger().WarnContext(ctx, "timesync marker write failed",
			"operation", "mark_timesynced",
			"outcome", "degraded",
			"error", err.Error(),
		)
	}
}

// ListBrowserLogins exposes the relying-party logins of a browser for the
// index page.
func (s *Service) ListBrowserLogins(ctx context.Context, browser domain.Browser) ([]domain.BrowserLogin, error) {
	return s.logins.ListByBrowser(ctx, browser.BrowserID)
}
