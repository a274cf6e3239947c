// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package types defines the auth configuration attached to a request and
// the outgoing request descriptor the auth strategies mutate.
package types

import (
	"fmt"
	"slices"

	"github.com/stacklok/reqauth/pkg/auth/awsv4"
	"github.com/stacklok/reqauth/pkg/auth/oauth2"
)

// Mode selects the auth strategy for a request.
type Mode string

// Supported auth modes.
const (
	ModeNone    Mode = "none"
	ModeInherit Mode = "inherit"
	ModeBasic   Mode = "basic"
	ModeBearer  Mode = "bearer"
	ModeDigest  Mode = "digest"
	ModeOAuth2  Mode = "oauth2"
	ModeAPIKey  Mode = "apikey"
	ModeAWSV4   Mode = "awsv4"
	ModeWSSE    Mode = "wsse"
)

var modes = []Mode{
	ModeNone, ModeInherit, ModeBasic, ModeBearer, ModeDigest,
	ModeOAuth2, ModeAPIKey, ModeAWSV4, ModeWSSE,
}

// Modes returns every supported mode.
func Modes() []Mode { return slices.Clone(modes) }

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool { return slices.Contains(modes, m) }

// APIKeyPlacement is where an API key goes on the outgoing request.
type APIKeyPlacement string

// API key placements.
const (
	APIKeyInHeader      APIKeyPlacement = "header"
	APIKeyInQueryParams APIKeyPlacement = "queryparams"
)

// UserPassword holds a username and password pair.
type UserPassword struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// String implements fmt.Stringer, redacting the password.
func (u UserPassword) String() string {
	return fmt.Sprintf("{Username: %s, Password: [REDACTED]}", u.Username)
}

// BearerConfig is a static bearer token.
type BearerConfig struct {
	Token string `json:"token" yaml:"token"`
}

// String implements fmt.Stringer, redacting the token.
func (BearerConfig) String() string { return "{Token: [REDACTED]}" }

// APIKeyConfig is an API key and its placement.
type APIKeyConfig struct {
	Key       string          `json:"key" yaml:"key"`
	Value     string          `json:"value" yaml:"value"`
	Placement APIKeyPlacement `json:"placement" yaml:"placement"`
}

// AuthConfig is a tagged union selected by Mode. Only the field matching
// Mode is consulted.
type AuthConfig struct {
	Mode   Mode           `json:"mode" yaml:"mode"`
	Basic  *UserPassword  `json:"basic,omitempty" yaml:"basic,omitempty"`
	Bearer *BearerConfig  `json:"bearer,omitempty" yaml:"bearer,omitempty"`
	Digest *UserPassword  `json:"digest,omitempty" yaml:"digest,omitempty"`
	OAuth2 *oauth2.Config `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
	APIKey *APIKeyConfig  `json:"apikey,omitempty" yaml:"apikey,omitempty"`
	AWSV4  *awsv4.Config  `json:"awsv4,omitempty" yaml:"awsv4,omitempty"`
	WSSE   *UserPassword  `json:"wsse,omitempty" yaml:"wsse,omitempty"`
}

// EffectiveMode returns Mode, treating an empty mode as none.
func (c *AuthConfig) EffectiveMode() Mode {
	if c == nil || c.Mode == "" {
		return ModeNone
	}
	return c.Mode
}

// Resolve returns the config that applies to a request with this config
// when its collection carries collection. Inherit yields collection, which
// may be nil; any other mode yields the receiver.
func (c *AuthConfig) Resolve(collection *AuthConfig) *AuthConfig {
	if c.EffectiveMode() == ModeInherit {
		return collection
	}
	return c
}
