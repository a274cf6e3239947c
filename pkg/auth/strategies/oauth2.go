// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
)

// OAuth2Strategy obtains a token through a TokenProvider and places it
// on the request per the config's token placement.
type OAuth2Strategy struct {
	tokens  TokenProvider
	scopeID string
}

// NewOAuth2Strategy creates an OAuth2Strategy that keys its tokens under scopeID.
func NewOAuth2Strategy(tokens TokenProvider, scopeID string) *OAuth2Strategy {
	return &OAuth2Strategy{tokens: tokens, scopeID: scopeID}
}

// Name returns the strategy identifier.
func (*OAuth2Strategy) Name() string { return string(types.ModeOAuth2) }

// Validate requires a valid oauth2 block.
func (*OAuth2Strategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.OAuth2 == nil {
		return autherrors.NewConfigurationError("oauth2 auth requires an oauth2 block", nil)
	}
	return cfg.OAuth2.WithDefaults().Validate()
}

// Apply resolves the token and places it. When no token is available the
// request proceeds unauthenticated.
func (s *OAuth2Strategy) Apply(ctx context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	if s.tokens == nil {
		return autherrors.NewConfigurationError("oauth2 auth requires a token provider", nil)
	}

	res, err := s.tokens.Token(ctx, *cfg.OAuth2, s.scopeID)
	if err != nil {
		return fmt.Errorf("failed to obtain oauth2 token: %w", err)
	}
	req.OAuth2 = res

	token := res.AccessToken()
	if token == "" {
		logger.Debugw("no oauth2 token available, sending request unauthenticated", "url", req.URL)
		return nil
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return autherrors.NewConfigurationError(fmt.Sprintf("invalid request URL %q", req.URL), err)
	}
	oauth2.ApplyToken(req.Header, u, *cfg.OAuth2, token)
	req.URL = u.String()
	return nil
}
