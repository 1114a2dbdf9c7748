package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var ErrOAuthNotConfigured = errors.New("google oauth is not configured")

var GoogleScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// Endpoint overrides google.Endpoint; used by tests.
	Endpoint *oauth2.Endpoint
}

// GoogleCredentials is what the callback hands back to the client.
type GoogleCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry"`
	Scopes       []string  `json:"scopes"`
	IDToken      string    `json:"id_token,omitempty"`
}

type GoogleOAuth struct {
	config *oauth2.Config
}

func NewGoogleOAuth(cfg GoogleOAuthConfig) *GoogleOAuth {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       GoogleScopes,
			Endpoint:     endpoint,
		},
	}
}

func (g *GoogleOAuth) Configured() bool {
	return g != nil && g.config.ClientID != "" && g.config.ClientSecret != ""
}

// AuthCodeURL builds the consent URL with offline access so Google returns a
// refresh token.
func (g *GoogleOAuth) AuthCodeURL(state string) (string, error) {
	if !g.Configured() {
		return "", ErrOAuthNotConfigured
	}
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (GoogleCredentials, error) {
	if !g.Configured() {
		return GoogleCredentials{}, ErrOAuthNotConfigured
	}
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return GoogleCredentials{}, fmt.Errorf("exchange google code: %w", err)
	}

	credentials := GoogleCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		Scopes:       g.config.Scopes,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		credentials.IDToken = idToken
	}
	return credentials, nil
}
