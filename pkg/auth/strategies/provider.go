// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=provider.go TokenProvider

// TokenProvider resolves OAuth2 tokens. *oauth2.Manager implements it.
type TokenProvider interface {
	Token(ctx context.Context, cfg oauth2.Config, scopeID string, opts ...oauth2.TokenOption) (*oauth2.TokenResult, error)
}

var _ TokenProvider = (*oauth2.Manager)(nil)
