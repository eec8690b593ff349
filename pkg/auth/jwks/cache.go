// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package jwks maintains a cache of the authorization server's public
// signing keys, fetched from its JWKS endpoint.
package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/yapidoo/authgate/pkg/logger"
	"github.com/yapidoo/authgate/pkg/networking"
)

// Common errors
var (
	ErrKeyNotFound       = errors.New("signing key not found in JWKS")
	ErrMissingJWKSURL    = errors.New("missing JWKS URL")
	ErrFailedToFetchJWKS = errors.New("failed to fetch JWKS")
)

const (
	defaultRefreshInterval = 15 * time.Minute
	defaultFetchTimeout    = 10 * time.Second
	defaultBackoffInitial  = 1 * time.Second
	defaultBackoffMax      = 5 * time.Minute
)

// Config contains configuration for the key set cache.
type Config struct {
	// JWKSURL is the URL to fetch the JWKS from.
	JWKSURL string

	// RefreshInterval is the period of the background refresh loop.
	RefreshInterval time.Duration

	// FetchTimeout bounds a single JWKS fetch.
	FetchTimeout time.Duration

	// BackoffMaxInterval caps the exponential backoff between failed
	// refresh attempts.
	BackoffMaxInterval time.Duration

	// CACertPath is the path to a CA certificate bundle for HTTPS requests.
	CACertPath string

	// AllowPlainHTTP permits a plain-HTTP JWKS endpoint (tests, local dev).
	AllowPlainHTTP bool

	// HTTPClient overrides the client used for JWKS fetches.
	HTTPClient *http.Client
}

// Cache holds the current key set plus refresh bookkeeping. The key set is
// replaced wholesale on refresh so readers never observe a partial set, and
// the last-known-good set stays in effect while refreshes fail.
type Cache struct {
	jwksURL         string
	client          *http.Client
	fetchTimeout    time.Duration
	refreshInterval time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	keys        jwk.Set
	fetchedAt   time.Time
	lastErr     error
	nextAttempt time.Time
	retry       *backoff.ExponentialBackOff

	// now is replaceable in tests.
	now func() time.Time
}

// NewCache creates a key set cache. The cache starts empty; the first
// GetKey miss or Refresh call populates it.
func NewCache(config Config) (*Cache, error) {
	if config.JWKSURL == "" {
		return nil, ErrMissingJWKSURL
	}

	client := config.HTTPClient
	if client == nil {
		var err error
		client, err = networking.NewHttpClientBuilder().
			WithCABundle(config.CACertPath).
			WithPlainHTTP(config.AllowPlainHTTP).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	refreshInterval := config.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	backoffMax := config.BackoffMaxInterval
	if backoffMax <= 0 {
		backoffMax = defaultBackoffMax
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = defaultBackoffInitial
	retry.MaxInterval = backoffMax

	return &Cache{
		jwksURL:         config.JWKSURL,
		client:          client,
		fetchTimeout:    fetchTimeout,
		refreshInterval: refreshInterval,
		retry:           retry,
		now:             time.Now,
	}, nil
}

// GetKey returns the raw public key for the given key ID. On a miss it
// triggers at most one in-flight refresh (concurrent misses share it) and
// retries the lookup once against the refreshed set. A second miss is
// ErrKeyNotFound, which callers treat as an invalid token rather than a
// transport error.
func (c *Cache) GetKey(ctx context.Context, keyID string) (any, error) {
	if raw, ok := c.lookup(keyID); ok {
		return raw, nil
	}

	if err := c.Refresh(ctx); err != nil {
		// A stale set may still hold the key; fall through to the retry.
		logger.Warnw("JWKS refresh failed on cache miss", "error", err)
	}

	if raw, ok := c.lookup(keyID); ok {
		return raw, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
}

// lookup resolves a key ID against the current set snapshot.
func (c *Cache) lookup(keyID string) (any, bool) {
	c.mu.RLock()
	keys := c.keys
	c.mu.RUnlock()

	if keys == nil {
		return nil, false
	}
	key, found := keys.LookupKeyID(keyID)
	if !found {
		return nil, false
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		logger.Errorw("failed to export raw key from JWKS", "kid", keyID, "error", err)
		return nil, false
	}
	return raw, true
}

// Refresh fetches the JWKS and replaces the current set wholesale.
// Concurrent callers coalesce onto a single fetch. While the backoff window
// from a previous failure is open, Refresh returns that failure without a
// network call and the last-known-good set remains authoritative.
//
// Refreshes are serialized, so the most recently completed fetch is always
// the effective set. When fetches race, "started last" does not imply
// "completed last"; the completed-last set winning is the accepted behavior.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	c.mu.RLock()
	gated := c.lastErr != nil && c.now().Before(c.nextAttempt)
	lastErr := c.lastErr
	c.mu.RUnlock()
	if gated {
		return lastErr
	}

	set, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.nextAttempt = c.now().Add(c.retry.NextBackOff())
		return err
	}

	c.keys = set
	c.fetchedAt = c.now()
	c.lastErr = nil
	c.retry.Reset()
	return nil
}

// fetch performs the bounded JWKS fetch and parses the document.
func (c *Cache) fetch(ctx context.Context) (jwk.Set, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToFetchJWKS, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToFetchJWKS, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrFailedToFetchJWKS, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToFetchJWKS, err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWKS document: %v", ErrFailedToFetchJWKS, err)
	}
	return set, nil
}

// LastRefreshed reports when the current set was fetched. The zero time
// means the cache has never been populated.
func (c *Cache) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Run refreshes the key set on an interval until the context is cancelled.
// Failures are logged and retried on the next tick; they never evict the
// last-known-good set.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logger.Warnw("background JWKS refresh failed", "url", c.jwksURL, "error", err)
			}
		}
	}
}
