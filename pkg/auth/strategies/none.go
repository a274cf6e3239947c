// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/types"
)

// NoneStrategy leaves requests untouched.
type NoneStrategy struct{}

// NewNoneStrategy creates a NoneStrategy.
func NewNoneStrategy() *NoneStrategy { return &NoneStrategy{} }

// Name returns the strategy identifier.
func (*NoneStrategy) Name() string { return string(types.ModeNone) }

// Validate accepts any config.
func (*NoneStrategy) Validate(*types.AuthConfig) error { return nil }

// Apply does nothing.
func (*NoneStrategy) Apply(context.Context, *types.PreparedRequest, *types.AuthConfig) error {
	return nil
}
