// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScopeClaim(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		claimNames []string
		claims     jwt.MapClaims
		want       []string
	}{
		{
			name:   "space-delimited scope claim",
			claims: jwt.MapClaims{"sub": "u1", "scope": "users.read users.write"},
			want:   []string{"users.read", "users.write"},
		},
		{
			name:   "scp fallback when scope absent",
			claims: jwt.MapClaims{"sub": "u1", "scp": "users.read"},
			want:   []string{"users.read"},
		},
		{
			name:   "scp as string array",
			claims: jwt.MapClaims{"sub": "u1", "scp": []any{"users.read", "admin"}},
			want:   []string{"users.read", "admin"},
		},
		{
			name:   "first present claim wins even when empty",
			claims: jwt.MapClaims{"sub": "u1", "scope": "", "scp": "users.read"},
			want:   []string{},
		},
		{
			name:       "custom precedence order",
			claimNames: []string{"scp", "scope"},
			claims:     jwt.MapClaims{"sub": "u1", "scope": "ignored", "scp": "users.read"},
			want:       []string{"users.read"},
		},
		{
			name:   "no scope claim yields empty set",
			claims: jwt.MapClaims{"sub": "u1"},
			want:   nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			extractor := NewExtractor(tc.claimNames...)
			principal := extractor.Extract(tc.claims)
			assert.Equal(t, "u1", principal.Subject)
			assert.Equal(t, tc.want, principal.Scopes)
		})
	}
}

func TestExtractNeverFails(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor()

	principal := extractor.Extract(jwt.MapClaims{})
	require.NotNil(t, principal)
	assert.Empty(t, principal.Subject)
	assert.Empty(t, principal.Scopes)

	// Odd claim types degrade to empty, not panics.
	principal = extractor.Extract(jwt.MapClaims{"sub": 42, "scope": 7})
	require.NotNil(t, principal)
	assert.Empty(t, principal.Subject)
	assert.Empty(t, principal.Scopes)
}

func TestExtractCopiesCustomClaims(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub":        "u1",
		"scope":      "users.read",
		"tenant_id":  "acme",
		"department": "billing",
	}

	principal := NewExtractor().Extract(claims)
	assert.Equal(t, "acme", principal.Claims["tenant_id"])
	assert.Equal(t, "billing", principal.Claims["department"])
	assert.True(t, principal.HasScope("users.read"))
	assert.False(t, principal.HasScope("users.write"))
}

func TestPrincipalRedaction(t *testing.T) {
	t.Parallel()

	principal := &Principal{
		Subject: "u1",
		Scopes:  []string{"users.read"},
		Token:   "eyJhbGciOi.secret.signature",
	}

	assert.NotContains(t, principal.String(), "secret")

	data, err := json.Marshal(principal)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), "REDACTED")
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	t.Parallel()

	principal := &Principal{Subject: "u1"}
	ctx := WithPrincipal(context.Background(), principal)

	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, principal, got)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)

	// Nil principal leaves the context untouched.
	ctx = WithPrincipal(context.Background(), nil)
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok)
}
