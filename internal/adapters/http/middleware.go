package http

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyBrowser   ctxKey = "browser_holder"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

func serverHeaderMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header != "" {
				w.Header().Set("Server", header)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// botAgents lists user agents that get a fixed answer before any store is
// touched. Anchored so a browser merely mentioning one of these is not
// caught.
var botAgents = []*regexp.Regexp{
	regexp.MustCompile(`^Wget/.*`),
	regexp.MustCompile(`^Pingdom\.com_bot_version.*`),
	regexp.MustCompile(`^curl/.*`),
	regexp.MustCompile(`^nutch-.*`),
}

func isBotAgent(userAgent string) bool {
	for _, pattern := range botAgents {
		if pattern.MatchString(userAgent) {
			return true
		}
	}
	return false
}

func botFilterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isBotAgent(r.UserAgent()) {
			httpLogger().InfoContext(r.Context(), "bot agent short-circuited",
				"operation", "bot_filter",
				"outcome", "rejected",
				"user_agent", r.UserAgent(),
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(botPage))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// browserSessionMiddleware resolves the calling browser, enforces session
// cookie consistency and arms the response-phase cookie finalizer. It never
// creates a browser record itself.
func (h *Handler) browserSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		remoteIP := readIP(r)
		holder := &browserHolder{}

		publicID := cookieValue(r, h.cfg.PublicCookieName)
		browser, err := h.service.ResolveBrowser(ctx, publicID, remoteIP)
		if err != nil {
			writeMappedError(ctx, w, "resolve_browser", err)
			return
		}
		if browser != nil {
			eval, err := h.service.EvaluateSession(ctx, browser, cookieValue(r, h.cfg.SessionCookieName))
			if err != nil {
				writeMappedError(ctx, w, "evaluate_session", err)
				return
			}
			holder.SetBrowser(browser)
			holder.AddNotice(eval.Notice)

			// Heartbeat polling must not count as activity; everything else
			// is the user actually driving the browser.
			passive := strings.HasPrefix(r.URL.Path, "/ping")
			if err := h.service.UpdateLastSeen(ctx, *browser, remoteIP, passive); err != nil {
				httpLogger().WarnContext(ctx, "last seen update failed",
					"operation", "update_last_seen",
					"outcome", "degraded",
					"error", err.Error(),
				)
			}
		}

		ctx = context.WithValue(ctx, ctxKeyBrowser, holder)
		writer := &sessionWriter{
			ResponseWriter: w,
			req:            r.WithContext(ctx),
			service:        h.service,
			cfg:            h.cfg,
			holder:         holder,
		}
		next.ServeHTTP(writer, r.WithContext(ctx))

		// A handler that produced no output still owes the client its cookies.
		writer.once.Do(writer.finalize)
	})
}

// fingerprintMiddleware feeds the correlator, best-effort. Failures never
// reach the client.
func (h *Handler) fingerprintMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if browser := browserFromContext(r.Context()); browser != nil {
			if _, err := h.service.CorrelateFingerprint(r.Context(), *browser, readIP(r), r.URL.Path); err != nil {
				httpLogger().WarnContext(r.Context(), "fingerprint correlation failed",
					"operation", "correlate_fingerprint",
					"outcome", "degraded",
					"error", err.Error(),
				)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}
