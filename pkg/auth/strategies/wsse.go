// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/types"
	"github.com/stacklok/reqauth/pkg/auth/wsse"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// WSSEStrategy sends a WS-Security UsernameToken built fresh per request.
type WSSEStrategy struct{}

// NewWSSEStrategy creates a WSSEStrategy.
func NewWSSEStrategy() *WSSEStrategy { return &WSSEStrategy{} }

// Name returns the strategy identifier.
func (*WSSEStrategy) Name() string { return string(types.ModeWSSE) }

// Validate requires a wsse block.
func (*WSSEStrategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.WSSE == nil {
		return autherrors.NewConfigurationError("wsse auth requires a wsse block", nil)
	}
	return nil
}

// Apply sets the X-WSSE header.
func (s *WSSEStrategy) Apply(_ context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	header, err := wsse.NewHeader(cfg.WSSE.Username, cfg.WSSE.Password)
	if err != nil {
		return autherrors.NewInternalError("building wsse header", err)
	}
	req.Header.Set(wsse.HeaderName, header)
	return nil
}
