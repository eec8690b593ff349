// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package auth provides authentication primitives shared across authgate:
// the authenticated principal and the claims-to-principal extraction.
package auth

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultScopeClaimNames is the default precedence order for locating the
// scope claim. Providers disagree on the claim name ('scope' vs 'scp'),
// which is a recurring source of integration bugs, so the order is explicit
// configuration rather than a silent fallback.
var DefaultScopeClaimNames = []string{"scope", "scp"}

// Principal represents an authenticated caller. It is only ever constructed
// from claims that passed full token validation; no partially-validated
// principal exists. Created per request, discarded when the request ends.
type Principal struct {
	// Subject is the unique identifier for the caller (from 'sub').
	Subject string

	// Scopes are the granted scope names, in token order.
	Scopes []string

	// Claims contains the full validated claims map.
	Claims map[string]any

	// Token is the original bearer token for pass-through scenarios.
	// Redacted in String() and MarshalJSON() to prevent leakage.
	Token string
}

// HasScope reports whether the principal was granted the named scope.
func (p *Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// String returns a representation with sensitive fields redacted.
func (p *Principal) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Principal{Subject:%q, Scopes:%v}", p.Subject, p.Scopes)
}

// MarshalJSON redacts the raw token so principals are safe to log.
func (p *Principal) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}

	type safePrincipal struct {
		Subject string         `json:"subject"`
		Scopes  []string       `json:"scopes"`
		Claims  map[string]any `json:"claims"`
		Token   string         `json:"token,omitempty"`
	}

	token := p.Token
	if token != "" {
		token = "REDACTED"
	}

	return json.Marshal(&safePrincipal{
		Subject: p.Subject,
		Scopes:  p.Scopes,
		Claims:  p.Claims,
		Token:   token,
	})
}

// Extractor converts validated claims into a Principal.
type Extractor struct {
	scopeClaimNames []string
}

// NewExtractor creates an extractor. With no arguments the
// DefaultScopeClaimNames precedence applies; otherwise the given claim
// names are tried in order and the first one present wins, even if empty.
func NewExtractor(scopeClaimNames ...string) *Extractor {
	names := scopeClaimNames
	if len(names) == 0 {
		names = DefaultScopeClaimNames
	}
	return &Extractor{scopeClaimNames: names}
}

// Extract builds a Principal from validated claims. It is a pure transform
// and never fails: absent optional claims yield empty fields, not errors.
func (e *Extractor) Extract(claims jwt.MapClaims) *Principal {
	principal := &Principal{
		Claims: map[string]any(claims),
	}

	if sub, ok := claims["sub"].(string); ok {
		principal.Subject = sub
	}

	for _, name := range e.scopeClaimNames {
		value, present := claims[name]
		if !present {
			continue
		}
		principal.Scopes = parseScopes(value)
		break
	}

	return principal
}

// parseScopes handles the two wire forms in the wild: a space-delimited
// string ('scope') and a string array (some providers' 'scp').
func parseScopes(value any) []string {
	switch v := value.(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return slices.Clone(v)
	case []any:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}
