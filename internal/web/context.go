package web

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RecordGrid/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already resolved by middleware.TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

type sessionKey struct{}

// withView resolves the {viewID} URL parameter to an open session and adds
// it, the view id and the request metadata to the request context.
func (s *Server) withView(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.service.View(chi.URLParam(r, "viewID"))
		if err != nil {
			respondError(w, r, err, statusFor(err))
			return
		}

		ctx := WithRequestMetadata(r.Context(), r)
		ctx = core.ContextWithViewID(ctx, session.ID)
		ctx = context.WithValue(ctx, sessionKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session stored by withView.
func sessionFrom(r *http.Request) *core.ViewSession {
	session, _ := r.Context().Value(sessionKey{}).(*core.ViewSession)
	return session
}
