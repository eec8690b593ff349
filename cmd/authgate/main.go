// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

// Command authgate runs a small resource server demonstrating the token
// validation and authorization pipeline end to end.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/yapidoo/authgate/pkg/auth"
	"github.com/yapidoo/authgate/pkg/auth/jwks"
	"github.com/yapidoo/authgate/pkg/auth/middleware"
	"github.com/yapidoo/authgate/pkg/auth/oidc"
	"github.com/yapidoo/authgate/pkg/auth/token"
	"github.com/yapidoo/authgate/pkg/authz"
	"github.com/yapidoo/authgate/pkg/logger"
)

var (
	flagAddress         string
	flagIssuer          string
	flagAudience        string
	flagJWKSURL         string
	flagPolicyFile      string
	flagCACertPath      string
	flagScopeClaims     []string
	flagClockSkew       time.Duration
	flagRefreshInterval time.Duration
	flagAllowPlainHTTP  bool
	flagUnstructured    bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "Resource server gate for OAuth2/OIDC bearer tokens",
		Long: `authgate validates bearer tokens issued by a central authorization
server and enforces declarative scope policies on inbound requests.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo resource server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&flagAddress, "address", "127.0.0.1:8480", "listen address")
	flags.StringVar(&flagIssuer, "issuer", "", "authorization server issuer URL")
	flags.StringVar(&flagAudience, "audience", "", "expected token audience")
	flags.StringVar(&flagJWKSURL, "jwks-url", "", "JWKS URL (discovered from the issuer when empty)")
	flags.StringVar(&flagPolicyFile, "policy-file", "", "path to the authorization policy file")
	flags.StringVar(&flagCACertPath, "ca-cert", "", "path to a CA certificate bundle")
	flags.StringSliceVar(&flagScopeClaims, "scope-claims", auth.DefaultScopeClaimNames,
		"ordered claim names to read scopes from")
	flags.DurationVar(&flagClockSkew, "clock-skew", token.DefaultClockSkew,
		"tolerance applied to token time checks")
	flags.DurationVar(&flagRefreshInterval, "jwks-refresh-interval", 15*time.Minute,
		"background JWKS refresh interval")
	flags.BoolVar(&flagAllowPlainHTTP, "allow-plain-http", false,
		"allow plain-HTTP issuer and JWKS endpoints (development only)")
	flags.BoolVar(&flagUnstructured, "unstructured-logs", false, "human-readable log output")

	for _, name := range []string{"issuer", "audience", "policy-file"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
	return cmd
}

func serve(ctx context.Context) error {
	logger.Initialize(flagUnstructured)

	jwksURL := flagJWKSURL
	if jwksURL == "" {
		doc, err := oidc.Discover(ctx, flagIssuer, oidc.Options{
			CACertPath:     flagCACertPath,
			AllowPlainHTTP: flagAllowPlainHTTP,
		})
		if err != nil {
			return err
		}
		jwksURL = doc.JWKSURI
		logger.Infow("discovered JWKS endpoint", "issuer", flagIssuer, "jwks_url", jwksURL)
	}

	cache, err := jwks.NewCache(jwks.Config{
		JWKSURL:         jwksURL,
		RefreshInterval: flagRefreshInterval,
		CACertPath:      flagCACertPath,
		AllowPlainHTTP:  flagAllowPlainHTTP,
	})
	if err != nil {
		return err
	}
	go cache.Run(ctx)

	validator, err := token.NewValidator(cache, token.ValidatorConfig{
		Issuer:    flagIssuer,
		Audience:  flagAudience,
		ClockSkew: flagClockSkew,
	})
	if err != nil {
		return err
	}

	registry, err := authz.RegistryFromFile(flagPolicyFile)
	if err != nil {
		return err
	}
	logger.Infow("loaded authorization policies", "policies", registry.Names())

	authorizer, err := middleware.NewAuthorizer(validator, auth.NewExtractor(flagScopeClaims...), registry, flagIssuer)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	router.Group(func(r chi.Router) {
		r.Use(authorizer.Middleware("UsersRead"))
		r.Get("/users", listUsersHandler)
		r.Get("/me", whoAmIHandler)
	})
	router.Group(func(r chi.Router) {
		r.Use(authorizer.Middleware("UsersWrite"))
		r.Post("/users", createUserHandler)
	})

	server := &http.Server{
		Addr:              flagAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("server shutdown failed", "error", err)
		}
	}()

	logger.Infow("resource server listening", "address", flagAddress, "audience", flagAudience)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func whoAmIHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(principal); err != nil {
		logger.Errorw("failed to encode principal", "error", err)
	}
}

func listUsersHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"users": []}`)
}

func createUserHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusCreated)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
