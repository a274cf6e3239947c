// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
)

// ErrNoToken is returned by a TokenSource when the manager yields no token.
var ErrNoToken = errors.New("no oauth2 token available")

type managerTokenSource struct {
	ctx     context.Context
	mgr     *Manager
	cfg     Config
	scopeID string
}

// TokenSource adapts the manager to golang.org/x/oauth2 consumers. Every
// Token call goes through the manager's cache and refresh policy.
func TokenSource(ctx context.Context, mgr *Manager, cfg Config, scopeID string) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, mgr: mgr, cfg: cfg.Clone(), scopeID: scopeID}
}

// Token implements oauth2.TokenSource.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	res, err := s.mgr.Token(s.ctx, s.cfg, s.scopeID)
	if err != nil {
		return nil, err
	}
	if res.Credential == nil {
		return nil, ErrNoToken
	}
	return ToOAuth2Token(res.Credential), nil
}

// ToOAuth2Token converts a credential to an oauth2.Token.
func ToOAuth2Token(c *credentials.Credential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		ExpiresIn:    c.ExpiresIn,
		Expiry:       c.ExpiresAt,
	}
	extra := map[string]any{}
	for k, v := range c.Extra {
		extra[k] = v
	}
	if c.IDToken != "" {
		extra["id_token"] = c.IDToken
	}
	if c.Scope != "" {
		extra["scope"] = c.Scope
	}
	if len(extra) > 0 {
		tok = tok.WithExtra(extra)
	}
	return tok
}
