// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Package networking provides HTTP client construction for outbound
// requests to the authorization server.
package networking

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// HttpTimeout is the default timeout for outgoing HTTP requests.
const HttpTimeout = 30 * time.Second

// ValidatingTransport validates request URLs prior to forwarding.
type ValidatingTransport struct {
	Transport http.RoundTripper

	// AllowHTTP permits plain-HTTP URLs. Only enabled for tests and
	// explicitly configured development setups.
	AllowHTTP bool
}

// RoundTrip validates the request URL prior to forwarding.
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parsedUrl, err := url.Parse(req.URL.String())
	if err != nil {
		return nil, fmt.Errorf("the supplied URL %s is malformed", req.URL.String())
	}

	if parsedUrl.Scheme != "https" && !t.AllowHTTP {
		return nil, fmt.Errorf("the supplied URL %s is not HTTPS scheme", req.URL.String())
	}

	return t.Transport.RoundTrip(req)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients.
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	caCertPath            string
	allowHTTP             bool
}

// NewHttpClientBuilder returns a new HttpClientBuilder.
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithCABundle sets the CA certificate bundle path.
func (b *HttpClientBuilder) WithCABundle(path string) *HttpClientBuilder {
	b.caCertPath = path
	return b
}

// WithTimeout overrides the overall client timeout.
func (b *HttpClientBuilder) WithTimeout(d time.Duration) *HttpClientBuilder {
	b.clientTimeout = d
	return b
}

// WithPlainHTTP allows plain-HTTP endpoints (tests, local development).
func (b *HttpClientBuilder) WithPlainHTTP(allow bool) *HttpClientBuilder {
	b.allowHTTP = allow
	return b
}

// Build creates the configured HTTP client.
func (b *HttpClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	if b.caCertPath != "" {
		caCert, err := os.ReadFile(b.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate bundle: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate bundle")
		}

		transport.TLSClientConfig = &tls.Config{
			RootCAs:    caCertPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Timeout: b.clientTimeout,
		Transport: &ValidatingTransport{
			Transport: transport,
			AllowHTTP: b.allowHTTP,
		},
	}, nil
}
