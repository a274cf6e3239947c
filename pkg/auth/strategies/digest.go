// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/digest"
	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// DigestStrategy arms the digest challenge-response transport. Nothing is
// sent up front; the Authorization header is built after the first 401.
type DigestStrategy struct{}

// NewDigestStrategy creates a DigestStrategy.
func NewDigestStrategy() *DigestStrategy { return &DigestStrategy{} }

// Name returns the strategy identifier.
func (*DigestStrategy) Name() string { return string(types.ModeDigest) }

// Validate requires a digest block.
func (*DigestStrategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.Digest == nil {
		return autherrors.NewConfigurationError("digest auth requires a digest block", nil)
	}
	return nil
}

// Apply records the digest credentials on the request.
func (s *DigestStrategy) Apply(_ context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	req.Digest = &digest.Credentials{Username: cfg.Digest.Username, Password: cfg.Digest.Password}
	return nil
}
