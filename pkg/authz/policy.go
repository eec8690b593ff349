// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package authz provides declarative, scope-based authorization policies.
package authz

import (
	"fmt"
	"maps"
	"slices"
)

// Policy names a set of requirements an authenticated principal must meet.
// All required scopes must be present and all required claim/value pairs
// must match exactly; there are no any-of policies. Policies are registered
// once at startup and immutable thereafter.
type Policy struct {
	// Name identifies the policy at the request boundary.
	Name string `json:"name"`

	// RequiredScopes must all be granted to the principal.
	RequiredScopes []string `json:"required_scopes,omitempty"`

	// RequiredClaims maps claim names to the exact value each must hold.
	RequiredClaims map[string]string `json:"required_claims,omitempty"`
}

// Validate checks the policy definition itself.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	for _, scope := range p.RequiredScopes {
		if scope == "" {
			return fmt.Errorf("policy %q lists an empty required scope", p.Name)
		}
	}
	for claim := range p.RequiredClaims {
		if claim == "" {
			return fmt.Errorf("policy %q lists an empty required claim name", p.Name)
		}
	}
	return nil
}

// clone returns a deep copy so registry entries stay immutable.
func (p Policy) clone() Policy {
	return Policy{
		Name:           p.Name,
		RequiredScopes: slices.Clone(p.RequiredScopes),
		RequiredClaims: maps.Clone(p.RequiredClaims),
	}
}

// Registry holds the named policies known to the service. Built once at
// startup; lookups are safe for concurrent use.
type Registry struct {
	policies map[string]Policy
}

// NewRegistry creates a registry from the given policies. Duplicate names
// are a configuration error.
func NewRegistry(policies ...Policy) (*Registry, error) {
	byName := make(map[string]Policy, len(policies))
	for _, policy := range policies {
		if err := policy.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byName[policy.Name]; exists {
			return nil, fmt.Errorf("duplicate policy name %q", policy.Name)
		}
		byName[policy.Name] = policy.clone()
	}
	return &Registry{policies: byName}, nil
}

// Get returns the named policy.
func (r *Registry) Get(name string) (Policy, bool) {
	policy, ok := r.policies[name]
	if !ok {
		return Policy{}, false
	}
	return policy.clone(), true
}

// Names lists the registered policy names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.policies))
}
