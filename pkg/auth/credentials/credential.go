// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package credentials defines the cached OAuth2 credential, the key it is
// stored under, and the expiry rule applied to it.
package credentials

import (
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"
)

// DefaultCredentialsID is used when a config does not name its credentials.
const DefaultCredentialsID = "credentials"

// Key identifies one cached credential. Two configs that differ only in
// CredentialsID never share a token, even against the same URL.
type Key struct {
	// ScopeID is the collection or session the credential belongs to.
	ScopeID string `json:"scope_id" yaml:"scope_id"`
	// URL is the access token URL (authorization URL for implicit grants).
	URL string `json:"url" yaml:"url"`
	// CredentialsID distinguishes several credentials against one URL.
	CredentialsID string `json:"credentials_id" yaml:"credentials_id"`
}

// NewKey builds a Key, defaulting an empty credentials id.
func NewKey(scopeID, rawURL, credentialsID string) Key {
	if credentialsID == "" {
		credentialsID = DefaultCredentialsID
	}
	return Key{ScopeID: scopeID, URL: rawURL, CredentialsID: credentialsID}
}

// String returns a stable encoding suitable for key-value backends.
// Each part is query-escaped so the separator cannot appear inside a part.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s",
		url.QueryEscape(k.ScopeID), url.QueryEscape(k.URL), url.QueryEscape(k.CredentialsID))
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid credential key %q", s)
	}

	decoded := make([]string, len(parts))
	for i, part := range parts {
		v, err := url.QueryUnescape(part)
		if err != nil {
			return Key{}, fmt.Errorf("invalid credential key %q: %w", s, err)
		}
		decoded[i] = v
	}
	return Key{ScopeID: decoded[0], URL: decoded[1], CredentialsID: decoded[2]}, nil
}

// Credential is a token response as cached by the engine.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	// ExpiresIn is the lifetime in seconds. Zero means the server sent none.
	ExpiresIn int64 `json:"expires_in,omitempty"`
	// CreatedAt is when the token was fetched.
	CreatedAt time.Time `json:"created_at,omitzero"`
	// ExpiresAt is CreatedAt+ExpiresIn when both are known.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	// Extra holds any other fields of the token response.
	Extra map[string]any `json:"extra,omitempty"`
}

// String implements fmt.Stringer, redacting tokens.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{AccessToken: %s, RefreshToken: %s, TokenType: %s, ExpiresIn: %d}",
		redact(c.AccessToken), redact(c.RefreshToken), c.TokenType, c.ExpiresIn)
}

func redact(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}

// Stamp records the fetch time and derives ExpiresAt.
func (c *Credential) Stamp(now time.Time) {
	c.CreatedAt = now
	c.ExpiresAt = time.Time{}
	if c.ExpiresIn > 0 {
		c.ExpiresAt = time.UnixMilli(now.UnixMilli() + c.ExpiresIn*1000)
	}
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Extra = maps.Clone(c.Extra)
	return &out
}

// Expired reports whether the credential is unusable at now. See IsExpired.
func (c *Credential) Expired(now time.Time) bool {
	return IsExpired(c, now)
}

// IsExpired reports whether c is unusable at now.
//
// A credential without an access token is always expired. A credential
// without expires_in or created_at never expires. Otherwise it is valid on
// the half-open interval [created_at, created_at+expires_in): the boundary
// instant itself counts as expired. Comparison is in milliseconds with no
// skew margin.
func IsExpired(c *Credential, now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return true
	}
	if c.ExpiresIn <= 0 || c.CreatedAt.IsZero() {
		return false
	}
	expiry := c.CreatedAt.UnixMilli() + c.ExpiresIn*1000
	return now.UnixMilli() >= expiry
}
