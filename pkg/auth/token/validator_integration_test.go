// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yapidoo/authgate/pkg/auth/jwks"
	"github.com/yapidoo/authgate/pkg/auth/token"
)

const (
	integIssuer   = "https://auth.yapidoo.example"
	integAudience = "yapidoo.api"
)

// rotatingJWKS serves a key set that tests can swap at runtime.
type rotatingJWKS struct {
	mu  sync.Mutex
	set jwk.Set
}

func (s *rotatingJWKS) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	set := s.set
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (s *rotatingJWKS) rotate(set jwk.Set) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

func publicKeySet(t *testing.T, kid string, key *rsa.PrivateKey) jwk.Set {
	t.Helper()

	public, err := jwk.Import(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, kid))
	require.NoError(t, public.Set(jwk.AlgorithmKey, "RS256"))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))
	return set
}

func signWithKid(t *testing.T, key *rsa.PrivateKey, kid string) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": integIssuer,
		"aud": integAudience,
		"sub": "svc-orders",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidatorWithLiveKeySetCache(t *testing.T) {
	t.Parallel()

	oldKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	endpoint := &rotatingJWKS{}
	endpoint.rotate(publicKeySet(t, "rotation-old", oldKey))

	server := httptest.NewServer(endpoint)
	t.Cleanup(server.Close)

	cache, err := jwks.NewCache(jwks.Config{JWKSURL: server.URL, AllowPlainHTTP: true})
	require.NoError(t, err)

	validator, err := token.NewValidator(cache, token.ValidatorConfig{
		Issuer:   integIssuer,
		Audience: integAudience,
	})
	require.NoError(t, err)

	ctx := context.Background()

	claims, err := validator.ValidateToken(ctx, signWithKid(t, oldKey, "rotation-old"))
	require.NoError(t, err)
	assert.Equal(t, "svc-orders", claims["sub"])

	// The issuer rotates its signing key. The unknown kid triggers a
	// miss-refresh, after which tokens under the new key validate without
	// any restart.
	endpoint.rotate(publicKeySet(t, "rotation-new", newKey))

	claims, err = validator.ValidateToken(ctx, signWithKid(t, newKey, "rotation-new"))
	require.NoError(t, err)
	assert.Equal(t, "svc-orders", claims["sub"])

	// Tokens under the retired key are now unverifiable.
	_, err = validator.ValidateToken(ctx, signWithKid(t, oldKey, "rotation-old"))
	require.Error(t, err)
	var verr *token.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, token.KindUnknownKey, verr.Kind)
}
