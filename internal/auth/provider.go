package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	// SessionCookieName carries the ID token when the client cannot set headers.
	SessionCookieName = "rateflow_session"

	// AccessTokenCookieName optionally carries an access token used to enrich
	// sessions from the userinfo endpoint.
	AccessTokenCookieName = "rateflow_access"

	// Development identity headers.
	DevSubjectHeader  = "X-Dev-Subject"
	DevUsernameHeader = "X-Dev-Username"
	DevNameHeader     = "X-Dev-Name"
	DevEmailHeader    = "X-Dev-Email"
)

var (
	// ErrNoCredentials means the request carried no identity at all.
	ErrNoCredentials = errors.New("auth: no credentials")

	// ErrInvalidCredentials means an identity was presented but failed verification.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// SessionProvider turns request credentials into a verified Session.
type SessionProvider interface {
	Authenticate(ctx context.Context, r *http.Request) (*Session, error)
}

// BearerToken extracts the raw token from the Authorization header, falling
// back to the session cookie.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// DevProvider trusts identity headers. It must only be used in development.
type DevProvider struct{}

// Authenticate builds a session from the X-Dev-* headers.
func (DevProvider) Authenticate(_ context.Context, r *http.Request) (*Session, error) {
	subject := strings.TrimSpace(r.Header.Get(DevSubjectHeader))
	if subject == "" {
		return nil, ErrNoCredentials
	}
	username := strings.TrimSpace(r.Header.Get(DevUsernameHeader))
	if username == "" {
		username = subject
	}
	return &Session{
		Subject:  subject,
		Username: username,
		Name:     strings.TrimSpace(r.Header.Get(DevNameHeader)),
		Email:    strings.TrimSpace(r.Header.Get(DevEmailHeader)),
	}, nil
}
