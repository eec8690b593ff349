// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package token provides offline JWT validation against cached signing keys.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors
var (
	ErrMissingIssuer   = errors.New("missing expected issuer")
	ErrMissingAudience = errors.New("missing expected audience")
	ErrMissingKeys     = errors.New("missing key source")
)

// DefaultClockSkew is the default tolerance applied to exp/nbf checks.
const DefaultClockSkew = 30 * time.Second

// KeySource resolves a key ID to raw public key material. Implemented by
// jwks.Cache; the validator itself never performs network I/O.
type KeySource interface {
	GetKey(ctx context.Context, keyID string) (any, error)
}

// ValidatorConfig contains configuration for the token validator.
type ValidatorConfig struct {
	// Issuer is the expected issuer URL; compared exactly against 'iss'.
	Issuer string

	// Audience is the expected audience; 'aud' must contain it.
	Audience string

	// ClockSkew is the tolerance applied to exp/nbf checks.
	// Defaults to DefaultClockSkew.
	ClockSkew time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Validator validates bearer tokens. Checks run in a fixed order and the
// first failure wins; every failure is a *ValidationError.
type Validator struct {
	issuer   string
	audience string
	skew     time.Duration
	now      func() time.Time
	keys     KeySource
	parser   *jwt.Parser
}

// NewValidator creates a token validator backed by the given key source.
func NewValidator(keys KeySource, config ValidatorConfig) (*Validator, error) {
	if keys == nil {
		return nil, ErrMissingKeys
	}
	if config.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	if config.Audience == "" {
		return nil, ErrMissingAudience
	}

	skew := config.ClockSkew
	if skew <= 0 {
		skew = DefaultClockSkew
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Validator{
		issuer:   config.Issuer,
		audience: config.Audience,
		skew:     skew,
		now:      now,
		keys:     keys,
		// Claim checks run manually below so each failure carries its kind.
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}, nil
}

// keyForToken resolves the signing key for a parsed token header.
func (v *Validator) keyForToken(ctx context.Context, t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, newValidationError(KindMalformedToken,
			fmt.Errorf("unexpected signing method: %v", t.Header["alg"]))
	}

	kid, ok := t.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, newValidationError(KindMalformedToken, errors.New("token header missing kid"))
	}

	raw, err := v.keys.GetKey(ctx, kid)
	if err != nil {
		// Covers both a genuinely unknown key and fetch failure after the
		// cache exhausted its retry; either way the token is unverifiable.
		return nil, newValidationError(KindUnknownKey, err)
	}
	return raw, nil
}

// ValidateToken verifies the token's signature, issuer, audience, and time
// bounds. On success it returns the decoded claims unchanged. Signature
// checking is fully offline against the cached key set.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	parsed, err := v.parser.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.keyForToken(ctx, t)
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newValidationError(KindMalformedToken, errors.New("unexpected claims type"))
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// classifyParseError maps golang-jwt parse failures onto validation kinds.
func classifyParseError(err error) *ValidationError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		// Keyfunc failures carry their kind already.
		return verr
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newValidationError(KindMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newValidationError(KindInvalidSignature, err)
	default:
		return newValidationError(KindMalformedToken, err)
	}
}

// validateClaims checks issuer, audience, and time bounds, in that order.
func (v *Validator) validateClaims(claims jwt.MapClaims) *ValidationError {
	issuer, err := claims.GetIssuer()
	if err != nil || issuer != v.issuer {
		return newValidationError(KindIssuerMismatch,
			fmt.Errorf("issuer %q does not match expected %q", issuer, v.issuer))
	}

	audiences, err := claims.GetAudience()
	if err != nil {
		return newValidationError(KindAudienceMismatch, err)
	}
	found := false
	for _, aud := range audiences {
		if aud == v.audience {
			found = true
			break
		}
	}
	if !found {
		return newValidationError(KindAudienceMismatch,
			fmt.Errorf("audience %v does not contain expected %q", audiences, v.audience))
	}

	now := v.now()

	notBefore, err := claims.GetNotBefore()
	if err != nil {
		return newValidationError(KindNotYetValid, err)
	}
	if notBefore != nil && now.Add(v.skew).Before(notBefore.Time) {
		return newValidationError(KindNotYetValid,
			fmt.Errorf("token not valid before %v", notBefore.Time))
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return newValidationError(KindExpired, errors.New("token has no expiration time"))
	}
	// Boundary inclusive: exp equal to now-skew still passes.
	if now.Add(-v.skew).After(expiry.Time) {
		return newValidationError(KindExpired,
			fmt.Errorf("token expired at %v", expiry.Time))
	}

	return nil
}
