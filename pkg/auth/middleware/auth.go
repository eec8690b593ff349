// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package middleware provides the per-request authorization pipeline and
// its HTTP middleware form.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yapidoo/authgate/pkg/auth"
	"github.com/yapidoo/authgate/pkg/auth/token"
	"github.com/yapidoo/authgate/pkg/authz"
	"github.com/yapidoo/authgate/pkg/logger"
)

// Status is the outcome category of an authorization decision.
type Status int

// Authorization outcomes.
const (
	// StatusAllowed means the request may proceed with the principal attached.
	StatusAllowed Status = iota

	// StatusUnauthenticated means no valid token was presented (HTTP 401).
	StatusUnauthenticated

	// StatusForbidden means the token was valid but the policy was not
	// satisfied (HTTP 403).
	StatusForbidden
)

// Result is the discriminated outcome of authorizing one request.
type Result struct {
	Status Status

	// Principal is set when the token validated, for Allowed and Forbidden.
	Principal *auth.Principal

	// Decision carries the policy evaluation, including the specific
	// missing requirements on Forbidden.
	Decision authz.Decision
}

// TokenValidator is the validation dependency; implemented by
// token.Validator.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error)
}

// Authorizer runs the request pipeline: extract bearer token, validate,
// extract claims, evaluate policy. It holds no per-request state; requests
// are independent and may run concurrently.
type Authorizer struct {
	validator TokenValidator
	extractor *auth.Extractor
	policies  *authz.Registry
	realm     string
}

// NewAuthorizer creates a request authorizer. The realm (typically the
// issuer URL) appears in WWW-Authenticate responses.
func NewAuthorizer(validator TokenValidator, extractor *auth.Extractor, policies *authz.Registry, realm string) (*Authorizer, error) {
	if validator == nil {
		return nil, errors.New("missing token validator")
	}
	if policies == nil {
		return nil, errors.New("missing policy registry")
	}
	if extractor == nil {
		extractor = auth.NewExtractor()
	}
	return &Authorizer{
		validator: validator,
		extractor: extractor,
		policies:  policies,
		realm:     realm,
	}, nil
}

// extractBearerToken pulls the token out of an Authorization header value.
// An absent or non-Bearer header is an authentication failure before the
// validator is ever consulted.
func extractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tokenString := strings.TrimSpace(rest)
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// Authorize runs the pipeline for one request. All failures come back as a
// typed Result; no error escapes the authorization boundary.
func (a *Authorizer) Authorize(ctx context.Context, authorizationHeader, policyName string) Result {
	tokenString, ok := extractBearerToken(authorizationHeader)
	if !ok {
		return Result{Status: StatusUnauthenticated}
	}

	claims, err := a.validator.ValidateToken(ctx, tokenString)
	if err != nil {
		// The specific failed check goes to the logs only; responses stay
		// generic so rejections cannot be used as a validation oracle.
		var verr *token.ValidationError
		if errors.As(err, &verr) {
			logger.Infow("token rejected", "kind", string(verr.Kind))
		} else {
			logger.Warnw("token validation failed", "error", err)
		}
		return Result{Status: StatusUnauthenticated}
	}

	principal := a.extractor.Extract(claims)
	principal.Token = tokenString

	policy, ok := a.policies.Get(policyName)
	if !ok {
		// An unregistered policy is a wiring bug; deny rather than allow.
		logger.Errorw("unknown authorization policy", "policy", policyName)
		return Result{Status: StatusForbidden, Principal: principal}
	}

	decision := authz.Evaluate(policy, principal)
	if !decision.Allowed {
		logger.Infow("policy unsatisfied",
			"policy", policy.Name,
			"subject", principal.Subject,
			"missing_scopes", decision.MissingScopes,
			"missing_claims", decision.MissingClaims,
		)
		return Result{Status: StatusForbidden, Principal: principal, Decision: decision}
	}

	return Result{Status: StatusAllowed, Principal: principal, Decision: decision}
}

// buildWWWAuthenticate builds an RFC 6750 value for the WWW-Authenticate
// header. The error fields never describe which check failed.
func (a *Authorizer) buildWWWAuthenticate(invalidToken bool) string {
	var parts []string
	if a.realm != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, escapeQuotes(a.realm)))
	}
	if invalidToken {
		parts = append(parts, `error="invalid_token"`)
	}
	if len(parts) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// escapeQuotes escapes a string for use in a quoted-string context.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Middleware enforces the named policy on every request passing through.
// Allowed requests proceed with the principal in the request context;
// rejections map to 401 or 403 with generic bodies.
func (a *Authorizer) Middleware(policyName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			result := a.Authorize(r.Context(), header, policyName)

			switch result.Status {
			case StatusAllowed:
				ctx := auth.WithPrincipal(r.Context(), result.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
			case StatusUnauthenticated:
				w.Header().Set("WWW-Authenticate", a.buildWWWAuthenticate(header != ""))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			case StatusForbidden:
				http.Error(w, "Forbidden", http.StatusForbidden)
			}
		})
	}
}
