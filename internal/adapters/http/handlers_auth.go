package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
)

type loginPageData struct {
	Title    string
	Notices  []string
	Error    string
	Next     string
	Remember bool
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	holder := holderFromContext(r.Context())
	remember := false
	if browser := holder.Browser(); browser != nil {
		remember = browser.RememberBrowser
	}
	renderPage(w, http.StatusOK, "login", loginPageData{
		Title:    "Sign in",
		Notices:  holder.Notices(),
		Next:     sanitizeNext(r.URL.Query().Get("next")),
		Remember: remember,
	})
}

func (h *Handler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed form")
		return
	}
	holder := holderFromContext(ctx)
	next := sanitizeNext(r.PostForm.Get("next"))

	result, err := h.service.Login(ctx, application.LoginRequest{
		Username:        strings.TrimSpace(r.PostForm.Get("username")),
		Password:        r.PostForm.Get("password"),
		RememberBrowser: r.PostForm.Get("remember_browser") == "on",
		UserAgent:       r.UserAgent(),
		RemoteIP:        readIP(r),
		Browser:         holder.Browser(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			renderPage(w, http.StatusOK, "login", loginPageData{
				Title:   "Sign in",
				Notices: holder.Notices(),
				Error:   "Invalid username or password.",
				Next:    next,
			})
			return
		}
		writeMappedError(ctx, w, "login", err)
		return
	}

	browser := result.Browser
	holder.SetBrowser(&browser)
	holder.SetTicket(result.Ticket)

	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder := holderFromContext(ctx)
	if browser := holder.Browser(); browser != nil && browser.UserID != nil {
		if err := h.service.Logout(ctx, browser, readIP(r)); err != nil {
			writeMappedError(ctx, w, "logout", err)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// sanitizeNext keeps redirects on this host. Anything absolute or
// scheme-relative is dropped.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
