package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// Config carries the HTTP-level knobs: cookie contract, server banner and
// timing windows.
type Config struct {
	PublicCookieName  string
	SessionCookieName string
	TicketCookieName  string
	PublicCookieTTL   time.Duration
	SecureCookies     bool
	ServerHeader      string
	TimesyncWindow    time.Duration
}

// Handler is the HTTP adapter entrypoint for the SSO flows.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	cfg     Config
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, cfg Config) *Handler {
	if cfg.PublicCookieName == "" {
		cfg.PublicCookieName = "v2public-browserid"
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "v2sessionbid"
	}
	if cfg.TicketCookieName == "" {
		cfg.TicketCookieName = "auth_pubtkt"
	}
	if cfg.PublicCookieTTL <= 0 {
		cfg.PublicCookieTTL = 365 * 24 * time.Hour
	}
	if cfg.TimesyncWindow <= 0 {
		cfg.TimesyncWindow = 12 * time.Hour
	}
	return &Handler{service: service, cfg: cfg}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type indexPageData struct {
	Title     string
	Notices   []string
	Username  string
	AuthLevel string
	Logins    []domain.BrowserLogin
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder := holderFromContext(ctx)
	data := indexPageData{
		Title:   "Single sign-on",
		Notices: holder.Notices(),
	}
	if browser := holder.Browser(); browser != nil && browser.IsAuthenticated(time.Now().UTC()) {
		data.Username = browser.Username
		data.AuthLevel = browser.EffectiveAuthLevel(time.Now().UTC()).String()
		logins, err := h.service.ListBrowserLogins(ctx, *browser)
		if err != nil {
			writeMappedError(ctx, w, "index", err)
			return
		}
		data.Logins = logins
	}
	renderPage(w, http.StatusOK, "index", data)
}

// ping answers heartbeat polling from open tabs. The session middleware
// records the sighting with the passive field set for this path.
func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	browser := browserFromContext(ctx)
	timesync := false
	if browser != nil {
		timesync = h.service.ShouldTimesync(ctx, browser.PublicID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"timesync": timesync,
	})
}

// timesync receives the client's clock reading and answers with the server
// clock, letting the front-end estimate its offset. Completion is recorded so
// the ping endpoint stops prompting.
func (h *Handler) timesync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientMillis := int64(0)
	if raw := r.URL.Query().Get("clock"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			clientMillis = parsed
		}
	}
	now := time.Now().UTC()
	// Exempt from the session chain; the browser id comes straight off the
	// cookie so the clock exchange stays cheap.
	if publicID := cookieValue(r, h.cfg.PublicCookieName); publicID != "" && clientMillis > 0 {
		h.service.MarkTimesynced(ctx, publicID, h.cfg.TimesyncWindow)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server_time_ms": now.UnixMilli(),
		"client_time_ms": clientMillis,
	})
}

// cspReport ingests Content-Security-Policy violation reports. The payload is
// logged verbatim; malformed reports are dropped silently.
func (h *Handler) cspReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var report map[string]any
		if json.Unmarshal(body, &report) == nil {
			httpLogger().WarnContext(r.Context(), "csp violation reported",
				"operation", "csp_report",
				"outcome", "recorded",
				"report", string(body),
				"user_agent", r.UserAgent(),
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
