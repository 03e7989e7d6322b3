// Package middleware contains HTTP middleware for the rateflow API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/handler"
	"github.com/DukeRupert/rateflow/internal/service"
)

// =============================================================================
// Session Middleware
// =============================================================================

// SessionMiddleware resolves the verified identity of a request and the
// business it owns. Identities are verified, never issued, here.
type SessionMiddleware struct {
	provider   auth.SessionProvider
	businesses service.BusinessService
	logger     *slog.Logger
}

// NewSessionMiddleware creates a new SessionMiddleware instance.
func NewSessionMiddleware(provider auth.SessionProvider, businesses service.BusinessService, logger *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		provider:   provider,
		businesses: businesses,
		logger:     logger,
	}
}

// WithSession loads the session and its business into the request context.
// Requests without valid credentials continue anonymously; the first request
// of a new subject creates its business.
//
// Flow:
//
//	Request -> WithSession -> Handler
//	           |
//	           +-> Verify credentials (if any)
//	           +-> Ensure business exists
//	           +-> Set session in context (if valid)
//	           +-> Call next handler
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.provider.Authenticate(r.Context(), r)
		if err != nil {
			if !errors.Is(err, auth.ErrNoCredentials) {
				m.logger.Debug("session rejected", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		business, err := m.businesses.EnsureBusiness(r.Context(), sess)
		if err != nil {
			if domain.ErrorCode(err) == domain.EINTERNAL {
				handler.ErrorResponse(w, r, m.logger, err)
				return
			}
			m.logger.Info("business unavailable for session",
				"subject", sess.Subject,
				"code", domain.ErrorCode(err),
			)
			next.ServeHTTP(w, r)
			return
		}

		sess.BusinessID = business.ID
		ctx := auth.SetSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests without a session bound to a business.
// It must run after WithSession.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.GetSessionFromRequest(r)
		if sess == nil || !sess.HasBusiness() {
			m.logger.Debug("unauthenticated access attempt",
				"path", r.URL.Path,
				"method", r.Method,
			)
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(sessionMw.WithSession, sessionMw.RequireSession)
//	mux.Handle("GET /api/invoices", stack(invoicesHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).WithSession
	_ func(http.Handler) http.Handler = (&SessionMiddleware{}).RequireSession
)
