// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/networking"
)

//go:generate mockgen -destination=mocks/mock_authorizer.go -package=mocks -source=authorize.go Authorizer

// Authorizer performs the interactive step of the authorization_code and
// implicit grants: it sends the user to the authorize URL and captures the
// redirect to the callback URL.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (*AuthorizationResult, error)
}

// AuthorizationRequest is what the Authorizer needs to drive one attempt.
type AuthorizationRequest struct {
	GrantType GrantType
	// AuthorizeURL is the fully built authorization URL.
	AuthorizeURL string
	// CallbackURL is the redirect URI registered with the provider.
	CallbackURL string
	// ResponseType is "code" or "token".
	ResponseType string
	// State is the expected state value, empty when none was sent.
	State string
	// Header carries authorization-phase headers for the authorizer to send.
	Header http.Header
}

// AuthorizationResult is the outcome of a successful authorization.
type AuthorizationResult struct {
	// Code is set for the authorization_code grant.
	Code string
	// Implicit is set for the implicit grant.
	Implicit *ImplicitTokens
}

// ImplicitTokens are the values delivered in an implicit grant redirect.
// ExpiresIn is kept as received.
type ImplicitTokens struct {
	AccessToken string
	TokenType   string
	ExpiresIn   string
	Scope       string
	State       string
}

// ImplicitTokensFromValues reads implicit grant values from a redirect
// fragment or query.
func ImplicitTokensFromValues(v url.Values) *ImplicitTokens {
	return &ImplicitTokens{
		AccessToken: v.Get("access_token"),
		TokenType:   v.Get("token_type"),
		ExpiresIn:   v.Get("expires_in"),
		Scope:       v.Get("scope"),
		State:       v.Get("state"),
	}
}

// AuthorizationError is an OAuth error returned to the callback URL.
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("authorization failed: %s", e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.URI != "" {
		msg += " (see " + e.URI + ")"
	}
	return msg
}

// BuildAuthorizationRequest builds the authorize URL for an interactive
// grant. verifier is the PKCE verifier for this attempt, or empty.
func BuildAuthorizationRequest(cfg Config, verifier string) (AuthorizationRequest, error) {
	strategy, ok := grantStrategies[cfg.GrantType]
	if !ok || !strategy.interactive {
		return AuthorizationRequest{}, autherrors.NewConfigurationError(
			fmt.Sprintf("grant %q has no authorization step", cfg.GrantType), nil)
	}

	u, err := url.Parse(cfg.AuthorizationURL)
	if err != nil {
		return AuthorizationRequest{}, autherrors.NewConfigurationError("invalid authorizationUrl", err)
	}
	extraQuery, header, err := authorizationParams(cfg.AdditionalParameters.Authorization)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	networking.AddQueryParam(u, "response_type", strategy.responseType)
	networking.AddQueryParam(u, "client_id", cfg.ClientID)
	if cfg.CallbackURL != "" {
		networking.AddQueryParam(u, "redirect_uri", cfg.CallbackURL)
	}
	if cfg.Scope != "" {
		networking.AddQueryParam(u, "scope", cfg.Scope)
	}
	if cfg.GrantType == GrantAuthorizationCode && cfg.PKCE {
		networking.AddQueryParam(u, "code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
		networking.AddQueryParam(u, "code_challenge_method", "S256")
	}
	if cfg.State != "" {
		networking.AddQueryParam(u, "state", cfg.State)
	}
	for _, name := range slices.Sorted(maps.Keys(extraQuery)) {
		for _, v := range extraQuery[name] {
			networking.AddQueryParam(u, name, v)
		}
	}

	return AuthorizationRequest{
		GrantType:    cfg.GrantType,
		AuthorizeURL: u.String(),
		CallbackURL:  cfg.CallbackURL,
		ResponseType: strategy.responseType,
		State:        cfg.State,
		Header:       header,
	}, nil
}

// newVerifier returns a fresh PKCE verifier. It is never persisted.
func newVerifier() string {
	return oauth2.GenerateVerifier()
}

// implicitCredential converts implicit redirect values to a credential.
// token_type defaults to Bearer and a non-numeric expires_in is dropped.
func implicitCredential(t *ImplicitTokens) *credentials.Credential {
	d := &credentials.Credential{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		Scope:       t.Scope,
		Extra:       map[string]any{},
	}
	if d.TokenType == "" {
		d.TokenType = "Bearer"
	}
	if n, err := strconv.ParseInt(t.ExpiresIn, 10, 64); err == nil && n > 0 {
		d.ExpiresIn = n
	}
	if t.State != "" {
		d.Extra["state"] = t.State
	} else {
		d.Extra = nil
	}
	return d
}

func errInteractiveGrant(g GrantType) error {
	return autherrors.NewConfigurationError(
		fmt.Sprintf("OAuth2 %s grant requires an interactive authorizer", g), nil)
}
