// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package clientcredentials provides a cached token source for
// service-to-service callers using the OAuth2 client credentials grant.
// The authorization core only consumes the resulting bearer tokens; this
// package exists for the calling side of service pairs.
package clientcredentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yapidoo/authgate/pkg/auth/oidc"
	"github.com/yapidoo/authgate/pkg/networking"
)

// Common errors
var (
	ErrMissingClientID     = errors.New("missing client ID")
	ErrMissingClientSecret = errors.New("missing client secret")
	ErrMissingTokenURL     = errors.New("either issuer or token URL must be provided")
)

// Config contains configuration for the client credentials token source.
type Config struct {
	// Issuer is the authorization server URL; its token endpoint is
	// discovered when TokenURL is not set explicitly.
	Issuer string

	// TokenURL is the token endpoint, e.g. {authority}/connect/token.
	TokenURL string

	// ClientID and ClientSecret authenticate this service to the
	// authorization server.
	ClientID     string
	ClientSecret string

	// Scopes to request on the issued tokens.
	Scopes []string

	// CACertPath is the path to a CA certificate bundle for HTTPS requests.
	CACertPath string

	// AllowPlainHTTP permits plain-HTTP endpoints (tests, local dev).
	AllowPlainHTTP bool

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// NewTokenSource builds a cached token source. Tokens are fetched lazily
// and reused until expiry; callers share one source per downstream service.
func NewTokenSource(ctx context.Context, config Config) (oauth2.TokenSource, error) {
	if config.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if config.ClientSecret == "" {
		return nil, ErrMissingClientSecret
	}

	client := config.HTTPClient
	if client == nil {
		var err error
		client, err = networking.NewHttpClientBuilder().
			WithCABundle(config.CACertPath).
			WithPlainHTTP(config.AllowPlainHTTP).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	tokenURL := config.TokenURL
	if tokenURL == "" && config.Issuer != "" {
		doc, err := oidc.Discover(ctx, config.Issuer, oidc.Options{
			CACertPath:     config.CACertPath,
			AllowPlainHTTP: config.AllowPlainHTTP,
			HTTPClient:     client,
		})
		if err != nil {
			return nil, err
		}
		tokenURL = doc.TokenEndpoint
	}
	if tokenURL == "" {
		return nil, ErrMissingTokenURL
	}

	grant := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       config.Scopes,
	}

	// Route the grant's requests through the configured client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	return oauth2.ReuseTokenSource(nil, grant.TokenSource(ctx)), nil
}
