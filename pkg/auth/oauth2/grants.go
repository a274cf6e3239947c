// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"net/url"
	"strings"
)

// grantStrategy describes how one grant type obtains a token.
type grantStrategy struct {
	// interactive grants need an Authorizer before any token request.
	interactive bool
	// responseType is the authorize URL response_type for interactive grants.
	responseType string
	// refreshable grants may use refresh_token when the cached token expires.
	refreshable bool
	// tokenRequest builds the token endpoint request. Nil for grants whose
	// token arrives with the authorization redirect.
	tokenRequest func(cfg Config, code, verifier string) *TokenRequest
	// cacheURL is the URL component of the cache key.
	cacheURL func(cfg Config) string
}

var grantStrategies = map[GrantType]grantStrategy{
	GrantClientCredentials: {
		refreshable:  true,
		tokenRequest: clientCredentialsRequest,
		cacheURL:     accessTokenCacheURL,
	},
	GrantPassword: {
		refreshable:  true,
		tokenRequest: passwordRequest,
		cacheURL:     accessTokenCacheURL,
	},
	GrantAuthorizationCode: {
		interactive:  true,
		responseType: "code",
		refreshable:  true,
		tokenRequest: authorizationCodeRequest,
		cacheURL:     accessTokenCacheURL,
	},
	GrantImplicit: {
		interactive:  true,
		responseType: "token",
		cacheURL:     func(cfg Config) string { return cfg.AuthorizationURL },
	},
}

func accessTokenCacheURL(cfg Config) string { return cfg.AccessTokenURL }

func setScope(form url.Values, scope string) {
	if strings.TrimSpace(scope) != "" {
		form.Set("scope", scope)
	}
}

func clientCredentialsRequest(cfg Config, _, _ string) *TokenRequest {
	form := url.Values{}
	form.Set("grant_type", string(GrantClientCredentials))
	setScope(form, cfg.Scope)
	req := newTokenRequest(cfg.AccessTokenURL, form)
	req.placeClientCredentials(cfg)
	return req
}

func passwordRequest(cfg Config, _, _ string) *TokenRequest {
	form := url.Values{}
	form.Set("grant_type", string(GrantPassword))
	form.Set("username", cfg.Username)
	form.Set("password", cfg.Password)
	setScope(form, cfg.Scope)
	req := newTokenRequest(cfg.AccessTokenURL, form)
	req.placeClientCredentials(cfg)
	return req
}

func authorizationCodeRequest(cfg Config, code, verifier string) *TokenRequest {
	form := url.Values{}
	form.Set("grant_type", string(GrantAuthorizationCode))
	form.Set("code", code)
	form.Set("redirect_uri", cfg.CallbackURL)
	if cfg.PKCE {
		form.Set("code_verifier", verifier)
	}
	setScope(form, cfg.Scope)
	req := newTokenRequest(cfg.AccessTokenURL, form)
	req.placeClientCredentials(cfg)
	return req
}

// refreshURL is refreshTokenUrl, falling back to accessTokenUrl.
func refreshURL(cfg Config) string {
	if cfg.RefreshTokenURL != "" {
		return cfg.RefreshTokenURL
	}
	return cfg.AccessTokenURL
}

// refreshRequest places client credentials the same way as the grant's
// token request.
func refreshRequest(cfg Config, refreshToken string) *TokenRequest {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	req := newTokenRequest(refreshURL(cfg), form)
	req.placeClientCredentials(cfg)
	return req
}

// BuildTokenRequest returns the token request a non-interactive grant sends,
// with token-phase additional parameters applied.
func BuildTokenRequest(cfg Config) (*TokenRequest, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy := grantStrategies[cfg.GrantType]
	if strategy.interactive {
		return nil, errInteractiveGrant(cfg.GrantType)
	}
	req := strategy.tokenRequest(cfg, "", "")
	if err := ApplyAdditionalParameters(req, cfg.AdditionalParameters.Token); err != nil {
		return nil, err
	}
	return req, nil
}
