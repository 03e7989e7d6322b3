package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

// IDTokenClaims holds the claims read from a verified ID token.
type IDTokenClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Nickname          string `json:"nickname"`
}

// userInfoFetcher is the subset of *oidc.Provider used for enrichment.
type userInfoFetcher interface {
	UserInfo(ctx context.Context, tokenSource oauth2.TokenSource) (*oidc.UserInfo, error)
}

// OIDCProvider verifies ID tokens issued by an external identity provider.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	userInfo userInfoFetcher
	logger   *slog.Logger
}

// NewOIDCProvider discovers the issuer and builds an ID token verifier.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, logger *slog.Logger) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	logger.Info("OIDC provider initialized", "issuer", cfg.Issuer)
	return &OIDCProvider{
		verifier: verifier,
		userInfo: provider,
		logger:   logger.With("component", "oidc"),
	}, nil
}

// NewOIDCProviderWithVerifier builds a provider around an existing verifier.
// Userinfo enrichment is disabled.
func NewOIDCProviderWithVerifier(verifier *oidc.IDTokenVerifier, logger *slog.Logger) *OIDCProvider {
	return &OIDCProvider{verifier: verifier, logger: logger}
}

// Authenticate verifies the bearer ID token and maps its claims to a Session.
func (p *OIDCProvider) Authenticate(ctx context.Context, r *http.Request) (*Session, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, ErrNoCredentials
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		p.logger.Debug("ID token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	var claims IDTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: extract claims: %v", ErrInvalidCredentials, err)
	}

	if claims.Email == "" && p.userInfo != nil {
		if c, err := r.Cookie(AccessTokenCookieName); err == nil && c.Value != "" {
			p.enrichFromUserInfo(ctx, c.Value, &claims)
		}
	}

	return sessionFromClaims(idToken.Subject, claims), nil
}

// enrichFromUserInfo fills missing profile claims. Failures are logged and ignored.
func (p *OIDCProvider) enrichFromUserInfo(ctx context.Context, accessToken string, claims *IDTokenClaims) {
	info, err := p.userInfo.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		p.logger.Warn("userinfo lookup failed", "error", err)
		return
	}
	claims.Email = info.Email
	var extra IDTokenClaims
	if err := info.Claims(&extra); err == nil {
		if claims.Name == "" {
			claims.Name = extra.Name
		}
		if claims.PreferredUsername == "" {
			claims.PreferredUsername = extra.PreferredUsername
		}
	}
}

func sessionFromClaims(subject string, claims IDTokenClaims) *Session {
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Nickname
	}
	if username == "" {
		username = subject
	}
	return &Session{
		Subject:  subject,
		Username: username,
		Name:     claims.Name,
		Email:    claims.Email,
	}
}
