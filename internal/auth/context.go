// Package auth verifies externally issued identities and carries the
// resulting session through request contexts.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Session is a server-verified identity. BusinessID is filled in once the
// identity has been resolved to a business row.
type Session struct {
	Subject    string
	Username   string
	Name       string
	Email      string
	BusinessID uuid.UUID
}

// HasBusiness returns true once the session is bound to a business.
func (s *Session) HasBusiness() bool {
	return s != nil && s.BusinessID != uuid.Nil
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the key used to store the verified session in context.
	sessionContextKey contextKey = "session"
)

// GetSession retrieves the verified session from the context.
//
// Returns nil if no session is present.
//
// Usage:
//
//	sess := auth.GetSession(r.Context())
//	if sess == nil {
//	    // Handle unauthenticated request
//	}
func GetSession(ctx context.Context) *Session {
	sess, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return sess
}

// GetSessionFromRequest retrieves the session from the request context.
func GetSessionFromRequest(r *http.Request) *Session {
	return GetSession(r.Context())
}

// SetSession stores a session in the context.
func SetSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
