package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// LoginRequest is one password sign-in attempt bound to a browser.
type LoginRequest struct {
	Username        string
	Password        string
	RememberBrowser bool
	UserAgent       string
	RemoteIP        string
	// Browser is the caller's resolved browser, nil when no identity cookie
	// was presented yet.
	Browser *domain.Browser
}

// LoginResult carries the (possibly new) browser binding and the
// cross-service ticket cooperating services accept.
type LoginResult struct {
	Browser domain.Browser
	Ticket  string
}

// Login verifies credentials and raises the browser's authentication level:
// basic for a fresh binding, strong when a remembered browser signs the same
// user back in. A missing browser record is created here: this is the only
// place browser identities are born.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		appLogger().InfoContext(ctx, "password mismatch",
			"operation", "login",
			"outcome", "failure",
			"username", req.Username,
			"remote_ip", req.RemoteIP,
		)
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	browser := req.Browser
	if browser == nil {
		created, err := s.CreateBrowser(ctx, req.UserAgent, req.RememberBrowser)
		if err != nil {
			return LoginResult{}, err
		}
		browser = &created
	} else if browser.RememberBrowser != req.RememberBrowser {
		if err := s.browsers.UpdateRemember(ctx, browser.BrowserID, req.RememberBrowser, s.nowFn()); err != nil {
			return LoginResult{}, fmt.Errorf("update remember flag: %w", err)
		}
		browser.RememberBrowser = req.RememberBrowser
	}

	now := s.nowFn()
	level := domain.LevelBasic
	ttl := s.cfg.AuthLevelTTL
	// A remembered browser that already carried this user's sign-in skips
	// the second factor and comes back at strong.
	if req.Browser != nil && browser.RememberBrowser && browser.UserID != nil && *browser.UserID == user.UserID {
		level = domain.LevelStrong
		ttl = s.cfg.StrongLevelTTL
	}
	expires := now.Add(ttl)
	err = s.browsers.UpdateAuth(ctx, browser.BrowserID, &user.UserID, level, &expires, domain.StateAuthenticated, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("bind user to browser: %w", err)
	}
	browser.UserID = &user.UserID
	browser.Username = user.Username
	browser.AuthLevel = level
	browser.AuthLevelExpiresAt = &expires
	browser.AuthState = domain.StateAuthenticated

	s.appendUserLog(ctx, user.UserID, browser.BrowserID, req.RemoteIP, "Signed in with password", "sign-in")

	ticket, err := s.tickets.Issue(ports.TicketClaims{
		Username:  user.Username,
		PublicID:  browser.PublicID,
		AuthLevel: browser.AuthLevel,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TicketTTL),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue ticket: %w", err)
	}

	appLogger().InfoContext(ctx, "user signed in",
		"operation", "login",
		"outcome", "success",
		"username", user.Username,
		"public_id", browser.PublicID,
		"remember_browser", req.RememberBrowser,
	)
	return LoginResult{Browser: *browser, Ticket: ticket}, nil
}

// Logout clears the browser's authentication binding on explicit user
// request and audits it.
func (s *Service) Logout(ctx context.Context, browser *domain.Browser, remoteIP string) error {
	userID := browser.UserID
	if err := s.LogoutBrowser(ctx, browser); err != nil {
		return err
	}
	if userID != nil {
		s.appendUserLog(ctx, *userID, browser.BrowserID, remoteIP, "Signed out", "sign-out")
	}
	return nil
}

// VerifyTicket validates a cross-service ticket for the internal API.
func (s *Service) VerifyTicket(_ context.Context, token string) (ports.TicketClaims, error) {
	return s.tickets.Verify(token)
}

// TicketVerificationKeys exposes the ticket public keys for cooperating
// services.
func (s *Service) TicketVerificationKeys() map[string]string {
	return s.tickets.VerificationKeys()
}

// appendUserLog writes a user-visible audit line; failures are logged and
// swallowed since the audit trail must never break a sign-in.
func (s *Service) appendUserLog(ctx context.Context, userID, browserID uuid.UUID, remoteIP, message, icon string) {
	err := s.userLog.Append(ctx, domain.UserLogEntry{
		UserID:    userID,
		BrowserID: browserID,
		Message:   message,
		Icon:      icon,
		RemoteIP:  remoteIP,
		CreatedAt: s.nowFn(),
	})
	if err != nil {
		appLogger().WarnContext(ctx, "user log append failed",
			"operation", "append_user_log",
			"outcome", "degraded",
			"error", err.Error(),
		)
	}
}
