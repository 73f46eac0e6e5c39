package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the SSO routes and middleware stack. The bot filter
// runs on every path; the session binding chain wraps only what a browser
// touches, so probes and report-only endpoints never mutate session state.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(serverHeaderMiddleware(handler.cfg.ServerHeader))
	r.Use(botFilterMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Post("/csp-report", handler.cspReport)
	r.Get("/timesync", handler.timesync)

	r.Group(func(r chi.Router) {
		r.Use(handler.browserSessionMiddleware)
		r.Use(handler.fingerprintMiddleware)

		r.Get("/", handler.index)
		r.Get("/login", handler.loginPage)
		r.Post("/login", handler.loginSubmit)
		r.Get("/logout", handler.logout)
		r.Post("/logout", handler.logout)
		r.Get("/ping", handler.ping)

		r.Get("/openid/", handler.openidServer)
		r.Post("/openid/", handler.openidServer)
		r.Get("/openid/xrds/", handler.openidXRDS)
		r.Get("/openid/decide/", handler.openidDecide)
		r.Post("/openid/decide/", handler.openidDecide)
		r.Get("/openid/identity/{name}", handler.openidIdentity)
	})

	return r
}
