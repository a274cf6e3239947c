// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth2 manages the OAuth2 token lifecycle for outgoing requests:
// building grant requests, talking to token endpoints, caching credentials
// and deciding between cache, refresh and a fresh fetch.
package oauth2

import (
	"fmt"
	"slices"

	"dario.cat/mergo"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/validation"
)

// GrantType is an OAuth2 grant protocol variant.
type GrantType string

// Supported grant types.
const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
)

// CredentialsPlacement is where the client id and secret travel on a token request.
type CredentialsPlacement string

// Credential placements.
const (
	CredentialsInBasicAuthHeader CredentialsPlacement = "basic_auth_header"
	CredentialsInBody            CredentialsPlacement = "body"
)

// TokenPlacement is where an obtained access token goes on the outgoing request.
type TokenPlacement string

// Token placements.
const (
	TokenInHeader TokenPlacement = "header"
	TokenInURL    TokenPlacement = "url"
)

// SendIn is the target of an additional parameter.
type SendIn string

// Additional parameter targets.
const (
	SendInHeaders     SendIn = "headers"
	SendInQueryParams SendIn = "queryparams"
	SendInBody        SendIn = "body"
)

const (
	defaultTokenHeaderPrefix = "Bearer"
	defaultTokenQueryKey     = "access_token"
)

// AdditionalParameter is a custom parameter injected into an OAuth2 exchange.
// Disabled or nameless parameters are ignored.
type AdditionalParameter struct {
	Name    string `json:"name" yaml:"name"`
	Value   string `json:"value,omitempty" yaml:"value,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	SendIn  SendIn `json:"sendIn" yaml:"sendIn"`
}

// AdditionalParameters groups additional parameters by exchange phase.
type AdditionalParameters struct {
	Authorization []AdditionalParameter `json:"authorization,omitempty" yaml:"authorization,omitempty"`
	Token         []AdditionalParameter `json:"token,omitempty" yaml:"token,omitempty"`
	Refresh       []AdditionalParameter `json:"refresh,omitempty" yaml:"refresh,omitempty"`
}

// Config is the OAuth2 configuration attached to a request. Treat it as an
// immutable value: derive changes with Apply.
type Config struct {
	GrantType        GrantType `json:"grantType" yaml:"grantType"`
	AccessTokenURL   string    `json:"accessTokenUrl,omitempty" yaml:"accessTokenUrl,omitempty"`
	RefreshTokenURL  string    `json:"refreshTokenUrl,omitempty" yaml:"refreshTokenUrl,omitempty"`
	AuthorizationURL string    `json:"authorizationUrl,omitempty" yaml:"authorizationUrl,omitempty"`
	CallbackURL      string    `json:"callbackUrl,omitempty" yaml:"callbackUrl,omitempty"`
	ClientID         string    `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret     string    `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Username         string    `json:"username,omitempty" yaml:"username,omitempty"`
	Password         string    `json:"password,omitempty" yaml:"password,omitempty"`
	Scope            string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	State            string    `json:"state,omitempty" yaml:"state,omitempty"`
	PKCE             bool      `json:"pkce,omitempty" yaml:"pkce,omitempty"`

	CredentialsPlacement CredentialsPlacement `json:"credentialsPlacement,omitempty" yaml:"credentialsPlacement,omitempty"`
	CredentialsID        string               `json:"credentialsId,omitempty" yaml:"credentialsId,omitempty"`
	TokenPlacement       TokenPlacement       `json:"tokenPlacement,omitempty" yaml:"tokenPlacement,omitempty"`
	// TokenHeaderPrefix is nil when unset, which defaults to "Bearer". An
	// explicit empty prefix sends the bare token.
	TokenHeaderPrefix *string `json:"tokenHeaderPrefix,omitempty" yaml:"tokenHeaderPrefix,omitempty"`
	TokenQueryKey     string  `json:"tokenQueryKey,omitempty" yaml:"tokenQueryKey,omitempty"`

	AutoFetchToken   bool `json:"autoFetchToken" yaml:"autoFetchToken"`
	AutoRefreshToken bool `json:"autoRefreshToken" yaml:"autoRefreshToken"`

	AdditionalParameters AdditionalParameters `json:"additionalParameters" yaml:"additionalParameters,omitempty"`
}

// String implements fmt.Stringer, redacting secrets.
func (c Config) String() string {
	return fmt.Sprintf("Config{GrantType: %s, AccessTokenURL: %s, ClientID: %s, ClientSecret: %s, Password: %s}",
		c.GrantType, c.AccessTokenURL, c.ClientID, redact(c.ClientSecret), redact(c.Password))
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	if c.TokenHeaderPrefix != nil {
		prefix := *c.TokenHeaderPrefix
		out.TokenHeaderPrefix = &prefix
	}
	out.AdditionalParameters = AdditionalParameters{
		Authorization: slices.Clone(c.AdditionalParameters.Authorization),
		Token:         slices.Clone(c.AdditionalParameters.Token),
		Refresh:       slices.Clone(c.AdditionalParameters.Refresh),
	}
	return out
}

// HeaderPrefix returns the effective token header prefix.
func (c Config) HeaderPrefix() string {
	if c.TokenHeaderPrefix == nil {
		return defaultTokenHeaderPrefix
	}
	return *c.TokenHeaderPrefix
}

// WithDefaults returns a copy with unset placement fields filled in.
func (c Config) WithDefaults() Config {
	out := c.Clone()
	// TokenHeaderPrefix stays out of the merge: mergo would overwrite an
	// explicit empty prefix. HeaderPrefix resolves nil instead.
	defaults := Config{
		CredentialsPlacement: CredentialsInBody,
		TokenPlacement:       TokenInHeader,
		TokenQueryKey:        defaultTokenQueryKey,
	}
	// Merge only fills zero-valued fields and cannot fail for two values of
	// the same struct type.
	_ = mergo.Merge(&out, defaults)
	return out
}

// Validate checks the fields the grant type requires.
func (c Config) Validate() error {
	var required []requiredField
	switch c.GrantType {
	case GrantClientCredentials:
		required = []requiredField{{"accessTokenUrl", c.AccessTokenURL}, {"clientId", c.ClientID}}
	case GrantPassword:
		required = []requiredField{{"accessTokenUrl", c.AccessTokenURL}, {"username", c.Username}, {"password", c.Password}}
	case GrantAuthorizationCode:
		required = []requiredField{
			{"authorizationUrl", c.AuthorizationURL}, {"accessTokenUrl", c.AccessTokenURL},
			{"callbackUrl", c.CallbackURL}, {"clientId", c.ClientID},
		}
	case GrantImplicit:
		required = []requiredField{{"authorizationUrl", c.AuthorizationURL}, {"callbackUrl", c.CallbackURL}, {"clientId", c.ClientID}}
	case "":
		return autherrors.NewConfigurationError("grantType is required", nil)
	default:
		return autherrors.NewConfigurationError(fmt.Sprintf("unsupported grantType %q", c.GrantType), nil)
	}

	for _, f := range required {
		if f.value == "" {
			return autherrors.NewConfigurationError(
				fmt.Sprintf("%s is required for OAuth2 %s grant", f.name, c.GrantType), nil)
		}
	}

	for _, u := range []requiredField{
		{"accessTokenUrl", c.AccessTokenURL}, {"refreshTokenUrl", c.RefreshTokenURL},
		{"authorizationUrl", c.AuthorizationURL}, {"callbackUrl", c.CallbackURL},
	} {
		if u.value == "" {
			continue
		}
		if err := validation.ValidateEndpointURL(u.value); err != nil {
			return autherrors.NewConfigurationError(fmt.Sprintf("invalid %s", u.name), err)
		}
	}

	switch c.CredentialsPlacement {
	case "", CredentialsInBasicAuthHeader, CredentialsInBody:
	default:
		return autherrors.NewConfigurationError(
			fmt.Sprintf("unsupported credentialsPlacement %q", c.CredentialsPlacement), nil)
	}
	switch c.TokenPlacement {
	case "", TokenInHeader, TokenInURL:
	default:
		return autherrors.NewConfigurationError(fmt.Sprintf("unsupported tokenPlacement %q", c.TokenPlacement), nil)
	}

	phases := []struct {
		name   string
		params []AdditionalParameter
	}{
		{"authorization", c.AdditionalParameters.Authorization},
		{"token", c.AdditionalParameters.Token},
		{"refresh", c.AdditionalParameters.Refresh},
	}
	for _, phase := range phases {
		for _, p := range phase.params {
			switch p.SendIn {
			case SendInHeaders, SendInQueryParams, SendInBody:
			default:
				if p.Enabled && p.Name != "" {
					return autherrors.NewConfigurationError(
						fmt.Sprintf("additional %s parameter %q has unsupported sendIn %q", phase.name, p.Name, p.SendIn), nil)
				}
			}
		}
	}
	return nil
}

type requiredField struct {
	name  string
	value string
}

// Patch is a partial update to a Config. Nil fields are left unchanged.
type Patch struct {
	GrantType            *GrantType
	AccessTokenURL       *string
	RefreshTokenURL      *string
	AuthorizationURL     *string
	CallbackURL          *string
	ClientID             *string
	ClientSecret         *string
	Username             *string
	Password             *string
	Scope                *string
	State                *string
	PKCE                 *bool
	CredentialsPlacement *CredentialsPlacement
	CredentialsID        *string
	TokenPlacement       *TokenPlacement
	TokenHeaderPrefix    *string
	TokenQueryKey        *string
	AutoFetchToken       *bool
	AutoRefreshToken     *bool
	AdditionalParameters *AdditionalParameters
}

// Apply returns a validated copy of c with p applied. The receiver is not modified.
func (c Config) Apply(p Patch) (Config, error) {
	out := c.Clone()
	setIf(&out.GrantType, p.GrantType)
	setIf(&out.AccessTokenURL, p.AccessTokenURL)
	setIf(&out.RefreshTokenURL, p.RefreshTokenURL)
	setIf(&out.AuthorizationURL, p.AuthorizationURL)
	setIf(&out.CallbackURL, p.CallbackURL)
	setIf(&out.ClientID, p.ClientID)
	setIf(&out.ClientSecret, p.ClientSecret)
	setIf(&out.Username, p.Username)
	setIf(&out.Password, p.Password)
	setIf(&out.Scope, p.Scope)
	setIf(&out.State, p.State)
	setIf(&out.PKCE, p.PKCE)
	setIf(&out.CredentialsPlacement, p.CredentialsPlacement)
	setIf(&out.CredentialsID, p.CredentialsID)
	setIf(&out.TokenPlacement, p.TokenPlacement)
	setIf(&out.TokenQueryKey, p.TokenQueryKey)
	setIf(&out.AutoFetchToken, p.AutoFetchToken)
	setIf(&out.AutoRefreshToken, p.AutoRefreshToken)
	if p.TokenHeaderPrefix != nil {
		prefix := *p.TokenHeaderPrefix
		out.TokenHeaderPrefix = &prefix
	}
	if p.AdditionalParameters != nil {
		out.AdditionalParameters = Config{AdditionalParameters: *p.AdditionalParameters}.Clone().AdditionalParameters
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func redact(s string) string {
	if s == "" {
		return emptyPlaceholder
	}
	return redactedPlaceholder
}
