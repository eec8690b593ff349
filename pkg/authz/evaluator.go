// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"fmt"
	"slices"

	"github.com/yapidoo/authgate/pkg/auth"
)

// Decision is the outcome of evaluating a policy against a principal. It
// always carries the specific unmet requirements rather than a bare
// boolean, so denials are observable in logs.
type Decision struct {
	// Allowed reports whether every requirement was satisfied.
	Allowed bool

	// MissingScopes lists required scopes the principal lacks.
	MissingScopes []string

	// MissingClaims lists required claim/value pairs that did not match,
	// as "claim=value".
	MissingClaims []string
}

// Evaluate checks a principal against a policy. All required scopes must be
// present (order irrelevant) and all required claim values must match
// exactly. Pure and idempotent: identical inputs yield identical decisions.
func Evaluate(policy Policy, principal *auth.Principal) Decision {
	var decision Decision

	for _, scope := range policy.RequiredScopes {
		if !principal.HasScope(scope) {
			decision.MissingScopes = append(decision.MissingScopes, scope)
		}
	}

	// Deterministic report order regardless of map iteration.
	for _, claim := range sortedClaimNames(policy.RequiredClaims) {
		want := policy.RequiredClaims[claim]
		got, present := principal.Claims[claim]
		if !present || claimValue(got) != want {
			decision.MissingClaims = append(decision.MissingClaims, claim+"="+want)
		}
	}

	decision.Allowed = len(decision.MissingScopes) == 0 && len(decision.MissingClaims) == 0
	return decision
}

func sortedClaimNames(required map[string]string) []string {
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// claimValue normalizes a token claim value for exact string comparison.
// Tokens deliver numbers and booleans as JSON types; required values are
// declared as strings.
func claimValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
