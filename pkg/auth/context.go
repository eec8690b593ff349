// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// PrincipalContextKey is the key used to store the Principal in the request
// context. An empty struct type prevents collisions with other context keys.
type PrincipalContextKey struct{}

// WithPrincipal stores a Principal in the context. A nil principal returns
// the original context unchanged.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, PrincipalContextKey{}, principal)
}

// PrincipalFromContext retrieves the Principal from the context. Returns the
// principal and true if present, nil and false otherwise.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(PrincipalContextKey{}).(*Principal)
	return principal, ok
}
