// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/validation"
)

const authorizationHeader = "Authorization"

// BearerStrategy sends a static bearer token.
type BearerStrategy struct{}

// NewBearerStrategy creates a BearerStrategy.
func NewBearerStrategy() *BearerStrategy { return &BearerStrategy{} }

// Name returns the strategy identifier.
func (*BearerStrategy) Name() string { return string(types.ModeBearer) }

// Validate requires a bearer block whose token is a valid header value.
func (*BearerStrategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.Bearer == nil {
		return autherrors.NewConfigurationError("bearer auth requires a bearer block", nil)
	}
	if err := validation.ValidateHTTPHeaderValue(cfg.Bearer.Token); err != nil {
		return autherrors.NewConfigurationError("invalid bearer token", err)
	}
	return nil
}

// Apply sets Authorization to "Bearer <token>". An empty token still
// produces the header.
func (s *BearerStrategy) Apply(_ context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	req.Header.Set(authorizationHeader, "Bearer "+cfg.Bearer.Token)
	return nil
}
