package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// browserHolder is the per-request slot for the resolved browser binding.
// Handlers that mint or replace the binding (sign-in, responder stash) write
// it back here so the response path emits cookies for the final state.
type browserHolder struct {
	mu      sync.Mutex
	browser *domain.Browser
	ticket  string
	notices []string
	seen    map[string]bool
}

func (h *browserHolder) Browser() *domain.Browser {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.browser
}

func (h *browserHolder) SetBrowser(b *domain.Browser) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.browser = b
}

func (h *browserHolder) SetTicket(ticket string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticket = ticket
}

// AddNotice queues a one-time user-facing message, deduplicated per response
// cycle.
func (h *browserHolder) AddNotice(notice string) {
	if notice == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen == nil {
		h.seen = make(map[string]bool)
	}
	if h.seen[notice] {
		return
	}
	h.seen[notice] = true
	h.notices = append(h.notices, notice)
}

func (h *browserHolder) Notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notices...)
}

func holderFromContext(ctx context.Context) *browserHolder {
	if holder, ok := ctx.Value(ctxKeyBrowser).(*browserHolder); ok {
		return holder
	}
	return &browserHolder{}
}

func browserFromContext(ctx context.Context) *domain.Browser {
	return holderFromContext(ctx).Browser()
}

// sessionWriter finalizes the cookie contract exactly once, immediately
// before the first byte of the response leaves. Regenerating the session id
// here, not at resolve time, means a sign-in landing mid-request still gets
// its cookies.
type sessionWriter struct {
	http.ResponseWriter
	req     *http.Request
	service *application.Service
	cfg     Config
	holder  *browserHolder
	once    sync.Once
}

func (w *sessionWriter) WriteHeader(statusCode int) {
	w.once.Do(w.finalize)
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *sessionWriter) Write(payload []byte) (int, error) {
	w.once.Do(w.finalize)
	return w.ResponseWriter.Write(payload)
}

// finalize applies the response-phase session contract: single sign-out of
// the cross-service ticket below strong authentication, session-id rotation
// on mismatch, and an unconditional re-emit of the identity cookie pair.
func (w *sessionWriter) finalize() {
	ctx := w.req.Context()
	now := time.Now().UTC()

	w.holder.mu.Lock()
	browser := w.holder.browser
	ticket := w.holder.ticket
	w.holder.mu.Unlock()

	if browser == nil {
		// A stale cross-service ticket with no browser behind it still has
		// to be revoked.
		if _, err := w.req.Cookie(w.cfg.TicketCookieName); err == nil {
			http.SetCookie(w.ResponseWriter, &http.Cookie{
				Name:     w.cfg.TicketCookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				Secure:   w.cfg.SecureCookies,
				HttpOnly: false,
			})
		}
		return
	}

	if ticket != "" && browser.EffectiveAuthLevel(now) >= domain.LevelStrong {
		http.SetCookie(w.ResponseWriter, &http.Cookie{
			Name:     w.cfg.TicketCookieName,
			Value:    ticket,
			Path:     "/",
			Secure:   w.cfg.SecureCookies,
			HttpOnly: false,
		})
	} else if browser.EffectiveAuthLevel(now) < domain.LevelStrong {
		// Cooperating services key off this cookie; clearing it is the
		// single sign-out signal.
		http.SetCookie(w.ResponseWriter, &http.Cookie{
			Name:     w.cfg.TicketCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   w.cfg.SecureCookies,
			HttpOnly: false,
		})
	}

	if !browser.ValidSessionBID {
		if err := w.service.RegenerateSessionID(ctx, browser); err != nil {
			httpLogger().ErrorContext(ctx, "session id regeneration failed",
				"operation", "finalize_session",
				"outcome", "failure",
				"public_id", browser.PublicID,
				"error", err.Error(),
			)
		} else {
			browser.ValidSessionBID = true
		}
	}

	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     w.cfg.PublicCookieName,
		Value:    browser.PublicID,
		Path:     "/",
		MaxAge:   int(w.cfg.PublicCookieTTL.Seconds()),
		Secure:   w.cfg.SecureCookies,
		HttpOnly: true,
	})
	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     w.cfg.SessionCookieName,
		Value:    browser.SessionID,
		Path:     "/",
		Secure:   w.cfg.SecureCookies,
		HttpOnly: true,
	})
}
