// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"
	"fmt"

	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/validation"
)

// APIKeyStrategy places an API key in a header or, at URL-building time,
// in a query parameter.
type APIKeyStrategy struct{}

// NewAPIKeyStrategy creates an APIKeyStrategy.
func NewAPIKeyStrategy() *APIKeyStrategy { return &APIKeyStrategy{} }

// Name returns the strategy identifier.
func (*APIKeyStrategy) Name() string { return string(types.ModeAPIKey) }

// Validate checks the key, the placement and, for headers, that name and
// value are safe to send.
func (*APIKeyStrategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.APIKey == nil {
		return autherrors.NewConfigurationError("apikey auth requires an apikey block", nil)
	}
	key := cfg.APIKey
	if key.Key == "" {
		return autherrors.NewConfigurationError("apikey key is required", nil)
	}
	switch key.Placement {
	case types.APIKeyInHeader, "":
		if err := validation.ValidateHTTPHeaderName(key.Key); err != nil {
			return autherrors.NewConfigurationError("invalid apikey header name", err)
		}
		if err := validation.ValidateHTTPHeaderValue(key.Value); err != nil {
			return autherrors.NewConfigurationError("invalid apikey header value", err)
		}
	case types.APIKeyInQueryParams:
	default:
		return autherrors.NewConfigurationError(fmt.Sprintf("unsupported apikey placement %q", key.Placement), nil)
	}
	return nil
}

// Apply sets the header, or records the query parameter for Build.
func (s *APIKeyStrategy) Apply(_ context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	key := cfg.APIKey
	if key.Placement == types.APIKeyInQueryParams {
		req.APIKeyQuery = &types.QueryParam{Key: key.Key, Value: key.Value}
		return nil
	}
	req.Header.Set(key.Key, key.Value)
	return nil
}
