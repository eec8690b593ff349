// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yapidoo/authgate/pkg/auth"
)

func TestEvaluateScopes(t *testing.T) {
	t.Parallel()

	principal := &auth.Principal{
		Subject: "u1",
		Scopes:  []string{"users.read", "users.write"},
		Claims:  map[string]any{"sub": "u1"},
	}

	testCases := []struct {
		name        string
		policy      Policy
		wantAllowed bool
		wantMissing []string
	}{
		{
			name:        "single scope satisfied",
			policy:      Policy{Name: "UsersRead", RequiredScopes: []string{"users.read"}},
			wantAllowed: true,
		},
		{
			name:        "all scopes satisfied regardless of order",
			policy:      Policy{Name: "UsersRW", RequiredScopes: []string{"users.write", "users.read"}},
			wantAllowed: true,
		},
		{
			name:        "missing scope reported",
			policy:      Policy{Name: "Admin", RequiredScopes: []string{"users.read", "admin"}},
			wantAllowed: false,
			wantMissing: []string{"admin"},
		},
		{
			name:        "empty policy always satisfied",
			policy:      Policy{Name: "Open"},
			wantAllowed: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decision := Evaluate(tc.policy, principal)
			assert.Equal(t, tc.wantAllowed, decision.Allowed)
			assert.Equal(t, tc.wantMissing, decision.MissingScopes)
		})
	}
}

func TestEvaluateRequiredClaims(t *testing.T) {
	t.Parallel()

	principal := &auth.Principal{
		Subject: "u1",
		Scopes:  []string{"users.read"},
		Claims: map[string]any{
			"sub":       "u1",
			"tenant_id": "acme",
			"level":     float64(3), // JSON numbers decode as float64
		},
	}

	decision := Evaluate(Policy{
		Name:           "AcmeOnly",
		RequiredScopes: []string{"users.read"},
		RequiredClaims: map[string]string{"tenant_id": "acme"},
	}, principal)
	assert.True(t, decision.Allowed)

	decision = Evaluate(Policy{
		Name:           "GlobexOnly",
		RequiredClaims: map[string]string{"tenant_id": "globex", "region": "eu"},
	}, principal)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"region=eu", "tenant_id=globex"}, decision.MissingClaims)

	// Non-string claim values compare by their string form.
	decision = Evaluate(Policy{
		Name:           "Level3",
		RequiredClaims: map[string]string{"level": "3"},
	}, principal)
	assert.True(t, decision.Allowed)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	principal := &auth.Principal{
		Subject: "u1",
		Scopes:  []string{"users.read"},
		Claims:  map[string]any{"sub": "u1"},
	}
	policy := Policy{Name: "UsersWrite", RequiredScopes: []string{"users.write"}}

	first := Evaluate(policy, principal)
	second := Evaluate(policy, principal)
	assert.Equal(t, first, second)
	assert.False(t, second.Allowed)
	assert.Equal(t, []string{"users.write"}, second.MissingScopes)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(
		Policy{Name: "UsersRead", RequiredScopes: []string{"users.read"}},
		Policy{Name: "UsersWrite", RequiredScopes: []string{"users.write"}},
	)
	require.NoError(t, err)

	policy, ok := registry.Get("UsersRead")
	require.True(t, ok)
	assert.Equal(t, []string{"users.read"}, policy.RequiredScopes)

	_, ok = registry.Get("Nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"UsersRead", "UsersWrite"}, registry.Names())

	// Mutating a returned policy must not affect the registry.
	policy.RequiredScopes[0] = "tampered"
	again, ok := registry.Get("UsersRead")
	require.True(t, ok)
	assert.Equal(t, []string{"users.read"}, again.RequiredScopes)
}

func TestRegistryRejectsBadPolicies(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Policy{Name: ""})
	assert.Error(t, err)

	_, err = NewRegistry(
		Policy{Name: "Dup", RequiredScopes: []string{"a"}},
		Policy{Name: "Dup", RequiredScopes: []string{"b"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate policy name")
}
