// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package oidc provides OIDC discovery against an authorization server's
// well-known configuration endpoint.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yapidoo/authgate/pkg/networking"
)

// Common errors
var (
	ErrMissingJWKSURI  = errors.New("OIDC configuration missing jwks_uri")
	ErrIssuerMismatch  = errors.New("OIDC configuration issuer does not match requested issuer")
	ErrDiscoveryFailed = errors.New("failed to discover OIDC configuration")
)

// DiscoveryDocument represents the OIDC discovery document structure.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
}

// Options configures discovery requests.
type Options struct {
	// CACertPath is the path to a CA certificate bundle for HTTPS requests.
	CACertPath string

	// AllowPlainHTTP permits plain-HTTP issuers (tests, local development).
	AllowPlainHTTP bool

	// HTTPClient overrides the client used for the discovery request.
	HTTPClient *http.Client
}

// WellKnownURL returns the well-known configuration URL for an issuer.
func WellKnownURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
}

// Discover fetches and validates the OIDC discovery document for the issuer.
// A document whose issuer field does not exactly match the requested issuer
// is rejected, since keys fetched from it would not be trustworthy.
func Discover(ctx context.Context, issuer string, opts Options) (*DiscoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, WellKnownURL(issuer), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := opts.HTTPClient
	if client == nil {
		client, err = networking.NewHttpClientBuilder().
			WithCABundle(opts.CACertPath).
			WithPlainHTTP(opts.AllowPlainHTTP).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrDiscoveryFailed, resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OIDC configuration: %w", err)
	}

	if strings.TrimSuffix(doc.Issuer, "/") != strings.TrimSuffix(issuer, "/") {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrIssuerMismatch, doc.Issuer, issuer)
	}

	if doc.JWKSURI == "" {
		return nil, ErrMissingJWKSURI
	}

	return &doc, nil
}
