// Package server wires the search engine, session tracking, analytics, and
// recommendation pieces behind the HTTP API.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/internal/geo"
	"github.com/searchlab/prodsearch/internal/session"
)

// SessionCookie is the cookie carrying the opaque session id.
const SessionCookie = "psid"

type sessionIDKey struct{}

// SessionID returns the session id placed in the request context by the
// session middleware, or "" when the middleware did not run.
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SessionMiddleware resolves the client's session on every request: it
// issues a session cookie when absent, rotates sessions idle past the
// configured timeout, geolocates new sessions, bumps request counters, and
// emits a request event.
type SessionMiddleware struct {
	store     *session.Store
	geo       *geo.Client
	collector *analytics.Collector
	logger    *slog.Logger
}

// NewSessionMiddleware builds the middleware. The collector may be nil when
// analytics shipping is disabled.
func NewSessionMiddleware(store *session.Store, geoClient *geo.Client, collector *analytics.Collector) *SessionMiddleware {
	return &SessionMiddleware{
		store:     store,
		geo:       geoClient,
		collector: collector,
		logger:    slog.Default().With("component", "session-middleware"),
	}
}

// Wrap applies session resolution to next.
func (m *SessionMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		setCookie := false
		if id == "" {
			id = uuid.NewString()
			setCookie = true
		}

		ip := clientIP(r)
		if !m.store.Exists(id) {
			loc := m.geo.Lookup(ctx, ip)
			m.store.Register(id, loc.City, loc.Country)
			setCookie = true
		} else if rotated, changed := m.store.Touch(id); changed {
			id = rotated
			setCookie = true
		}

		m.store.RecordRequest(id)

		if setCookie {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if m.collector != nil {
			sess, _ := m.store.Get(id)
			m.collector.Track(analytics.RequestEvent{
				Type:      analytics.EventHTTPRequest,
				SessionID: id,
				Path:      r.URL.Path,
				Method:    r.Method,
				IP:        ip,
				City:      sess.City,
				Country:   sess.Country,
				UserAgent: r.UserAgent(),
				Timestamp: time.Now().UTC(),
			})
		}

		ctx = context.WithValue(ctx, sessionIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP extracts the originating client address, honoring the first entry
// of X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
