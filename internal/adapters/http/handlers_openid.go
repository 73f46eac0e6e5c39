package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ojarva-net/sso-frontend/internal/application"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/openid"
)

// openidServer is the OP endpoint: browser checkid requests, the direct
// associate/check_authentication modes and the bare info page all land here.
func (h *Handler) openidServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed form")
		return
	}
	holder := holderFromContext(ctx)

	result, err := h.service.HandleServerRequest(ctx, application.ServerInput{
		Browser:    holder.Browser(),
		Form:       r.Form,
		RequestURI: r.URL.RequestURI(),
		UserAgent:  r.UserAgent(),
		RemoteIP:   readIP(r),
	})
	if err != nil {
		if errors.Is(err, domain.ErrImmediateUnsupported) {
			// The protocol offers no safe degraded answer; fail loudly.
			logHTTPOperationError(ctx, "openid_server", http.StatusNotImplemented,
				"IMMEDIATE_UNSUPPORTED", "immediate mode cannot be satisfied", err)
			writeError(w, http.StatusNotImplemented, "IMMEDIATE_UNSUPPORTED",
				"immediate mode requests cannot be satisfied by this provider")
			return
		}
		writeMappedError(ctx, w, "openid_server", err)
		return
	}
	h.renderOpenIDResult(w, r, holder, result)
}

func (h *Handler) openidDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed form")
		return
	}
	holder := holderFromContext(ctx)

	result, err := h.service.HandleDecide(ctx, application.DecideInput{
		Browser:  holder.Browser(),
		Method:   r.Method,
		Form:     r.PostForm,
		RemoteIP: readIP(r),
	})
	if err != nil {
		writeMappedError(ctx, w, "openid_decide", err)
		return
	}
	h.renderOpenIDResult(w, r, holder, result)
}

func (h *Handler) openidXRDS(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.ProviderXRDS()
	if err != nil {
		writeMappedError(r.Context(), w, "openid_xrds", err)
		return
	}
	w.Header().Set("Content-Type", openid.XRDSMimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type identityPageData struct {
	Title   string
	Notices []string
	Name    string
}

// openidIdentity serves an identity page: XRDS for discovery clients, HTML
// for people.
func (h *Handler) openidIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	identity, err := h.service.LookupIdentity(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			renderPage(w, http.StatusNotFound, "error", errorPageData{
				Title:   "Unknown identity",
				Message: "No such OpenID identity here.",
			})
			return
		}
		writeMappedError(ctx, w, "openid_identity", err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), openid.XRDSMimeType) {
		body, err := h.service.IdentityXRDS()
		if err != nil {
			writeMappedError(ctx, w, "openid_identity", err)
			return
		}
		w.Header().Set("Content-Type", openid.XRDSMimeType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("X-XRDS-Location", h.service.IdentityURL(identity.Name))
	renderPage(w, http.StatusOK, "identity", identityPageData{
		Title: identity.Name,
		Name:  identity.Name,
	})
}

type errorPageData struct {
	Title   string
	Notices []string
	Message string
}

type decidePageData struct {
	Title           string
	Notices         []string
	TrustRoot       string
	Identity        string
	DiscoveryFailed bool
	SReg            map[string]string
}

type openidInfoData struct {
	Title            string
	Notices          []string
	OpenIDIdentifier string
	NextEscaped      string
}

type formPostData struct {
	Action string
	Fields map[string]string
}

func (h *Handler) renderOpenIDResult(w http.ResponseWriter, r *http.Request, holder *browserHolder, result application.OpenIDResult) {
	if result.Browser != nil {
		holder.SetBrowser(result.Browser)
	}

	switch result.Kind {
	case application.OpenIDRedirect:
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)

	case application.OpenIDFormPost:
		renderPage(w, http.StatusOK, "formpost", formPostData{
			Action: result.FormAction,
			Fields: result.FormFields,
		})

	case application.OpenIDDirect:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(result.Status)
		_, _ = w.Write(result.Body)

	case application.OpenIDDecidePage:
		renderPage(w, http.StatusOK, "decide", decidePageData{
			Title:           "Authorize sign-in",
			Notices:         holder.Notices(),
			TrustRoot:       result.Decide.TrustRoot,
			Identity:        result.Decide.Identity,
			DiscoveryFailed: result.Decide.TrustRootValid == domain.TrustRootDiscoveryFailed,
			SReg:            result.Decide.SReg,
		})

	case application.OpenIDErrorPage:
		renderPage(w, http.StatusOK, "error", errorPageData{
			Title:   result.Title,
			Notices: holder.Notices(),
			Message: result.Message,
		})

	default:
		data := openidInfoData{
			Title:   "OpenID provider",
			Notices: holder.Notices(),
		}
		if result.Info != nil {
			data.OpenIDIdentifier = result.Info.OpenIDIdentifier
			if result.Info.PageURL != "" {
				next := url.QueryEscape(r.URL.RequestURI())
				data.NextEscaped = strings.ReplaceAll(next, "%2F", "/")
			}
		}
		w.Header().Set("X-XRDS-Location", h.service.XRDSLocation())
		renderPage(w, http.StatusOK, "openid_info", data)
	}
}
