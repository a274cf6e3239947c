// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	"github.com/stacklok/reqauth/pkg/logger"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain or clear OAuth2 tokens",
		Long:  "The token command provides subcommands to obtain and clear the OAuth2 token of a request in the auth file.",
	}
	cmd.AddCommand(newTokenGetCmd(), newTokenClearCmd())
	return cmd
}

func newTokenGetCmd() *cobra.Command {
	var (
		force  bool
		claims bool
	)
	cmd := &cobra.Command{
		Use:   "get <request>",
		Short: "Get the OAuth2 token for a request",
		Long: `Resolve the OAuth2 token for the named request. A valid cached token is
returned as is; an expired one is refreshed or refetched according to the
request's autoRefreshToken and autoFetchToken settings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.loadRequest(args[0])
			if err != nil {
				return err
			}
			cfg, err := r.oauth2Config(args[0])
			if err != nil {
				return err
			}

			var opts []oauth2.TokenOption
			if force {
				opts = append(opts, oauth2.WithForceFetch())
			}
			res, err := e.manager.Token(ctx, cfg, e.settings.Scope, opts...)
			if err != nil {
				return err
			}
			for _, ex := range res.Exchanges {
				logger.Debugw("token endpoint exchange", "exchange", ex.String())
			}
			return printTokenResult(cmd.OutOrStdout(), res, claims)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip the cache and always run the grant")
	cmd.Flags().BoolVar(&claims, "claims", false, "Decode and print JWT claims without verifying them")
	return cmd
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <request>",
		Short: "Clear the cached OAuth2 token for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := e.loadRequest(args[0])
			if err != nil {
				return err
			}
			cfg, err := r.oauth2Config(args[0])
			if err != nil {
				return err
			}
			if err := e.manager.ClearToken(ctx, cfg, e.settings.Scope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached token for %s\n", oauth2.CacheKey(cfg, e.settings.Scope).URL)
			return nil
		},
	}
}

func printTokenResult(w io.Writer, res *oauth2.TokenResult, withClaims bool) error {
	fmt.Fprintf(w, "Source: %s\n", res.Source)
	cred := res.Credential
	if cred == nil {
		fmt.Fprintln(w, "No token available; set autoFetchToken to fetch one")
		return nil
	}
	fmt.Fprintf(w, "Token type: %s\n", cred.TokenType)
	if !cred.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n", cred.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if cred.Scope != "" {
		fmt.Fprintf(w, "Scope: %s\n", cred.Scope)
	}
	fmt.Fprintf(w, "Access token: %s\n", cred.AccessToken)

	if !withClaims {
		return nil
	}
	for _, t := range []struct{ label, token string }{
		{"Access token claims", cred.AccessToken},
		{"ID token claims", cred.IDToken},
	} {
		label, token := t.label, t.token
		if token == "" {
			continue
		}
		claims, err := extractJWTClaims(token)
		if err != nil {
			fmt.Fprintf(w, "%s: not a JWT (%v)\n", label, err)
			continue
		}
		out, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode claims: %w", err)
		}
		fmt.Fprintf(w, "%s:\n%s\n", label, out)
	}
	return nil
}

// extractJWTClaims decodes a JWT's claims without verifying its signature.
func extractJWTClaims(tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}
	return claims, nil
}
