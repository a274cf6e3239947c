// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"
	"encoding/base64"

	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// BasicStrategy sends HTTP Basic credentials.
type BasicStrategy struct{}

// NewBasicStrategy creates a BasicStrategy.
func NewBasicStrategy() *BasicStrategy { return &BasicStrategy{} }

// Name returns the strategy identifier.
func (*BasicStrategy) Name() string { return string(types.ModeBasic) }

// Validate requires a basic block.
func (*BasicStrategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.Basic == nil {
		return autherrors.NewConfigurationError("basic auth requires a basic block", nil)
	}
	return nil
}

// Apply sets Authorization to Basic base64(username:password).
func (s *BasicStrategy) Apply(_ context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	req.Header.Set(authorizationHeader, "Basic "+basicCredentials(cfg.Basic.Username, cfg.Basic.Password))
	return nil
}

func basicCredentials(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
