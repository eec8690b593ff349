// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package token

import "fmt"

// Kind identifies which validation check a token failed. Every kind maps to
// an unauthenticated rejection at the HTTP boundary; the kind itself is for
// operator logs only and is never sent to clients.
type Kind string

// Validation failure kinds, in check order.
const (
	KindMalformedToken   Kind = "malformed_token"
	KindUnknownKey       Kind = "unknown_key"
	KindInvalidSignature Kind = "invalid_signature"
	KindIssuerMismatch   Kind = "issuer_mismatch"
	KindAudienceMismatch Kind = "audience_mismatch"
	KindExpired          Kind = "expired"
	KindNotYetValid      Kind = "not_yet_valid"
)

// ValidationError is the typed rejection returned for every invalid token.
// Callers receive it as a discriminated result; no panic or untyped error
// crosses the authorization boundary.
type ValidationError struct {
	Kind Kind
	err  error
}

func newValidationError(kind Kind, err error) *ValidationError {
	return &ValidationError{Kind: kind, err: err}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("token validation failed: %s", e.Kind)
	}
	return fmt.Sprintf("token validation failed (%s): %v", e.Kind, e.err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ValidationError) Unwrap() error {
	return e.err
}
