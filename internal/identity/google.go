package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/marvinkome/mediay/internal/config"
	"golang.org/x/oauth2"
)

// googleIssuer is the OIDC discovery issuer for Google accounts.
const googleIssuer = "https://accounts.google.com"

// ProviderGoogle is the identity key recorded for Google sign-ins.
const ProviderGoogle = "google"

// GoogleProvider performs the authorization-code exchange and ID-token
// verification for Google sign-in.
type GoogleProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// googleClaims are the ID-token claims read after verification.
type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewGoogleProvider discovers Google's OIDC endpoints and builds the OAuth
// client. Returns an error when the client credentials are not configured.
func NewGoogleProvider(ctx context.Context, cfg config.GoogleConfig) (*GoogleProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("identity: google client credentials not configured")
	}

	provider, errDiscover := oidc.NewProvider(ctx, googleIssuer)
	if errDiscover != nil {
		return nil, fmt.Errorf("identity: discover google oidc: %w", errDiscover)
	}

	return &GoogleProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// NewState returns a fresh opaque state value for the authorization redirect.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL builds the Google authorization URL for the given state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (Profile, error) {
	token, errExchange := p.oauth2Config.Exchange(ctx, code)
	if errExchange != nil {
		return Profile{}, fmt.Errorf("identity: exchange code: %w", errExchange)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return Profile{}, fmt.Errorf("identity: no id_token in token response")
	}

	idToken, errVerify := p.verifier.Verify(ctx, rawIDToken)
	if errVerify != nil {
		return Profile{}, fmt.Errorf("identity: verify id token: %w", errVerify)
	}

	var claims googleClaims
	if errClaims := idToken.Claims(&claims); errClaims != nil {
		return Profile{}, fmt.Errorf("identity: parse claims: %w", errClaims)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Profile{}, fmt.Errorf("identity: google account email not verified")
	}

	return Profile{
		Provider: ProviderGoogle,
		Subject:  claims.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:     claims.Name,
	}, nil
}
