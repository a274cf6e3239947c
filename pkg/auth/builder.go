// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth applies request auth configuration to outgoing requests.
// A Builder dispatches on the auth mode to a registered Strategy, resolving
// inherit against the collection's config first.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stacklok/reqauth/pkg/auth/strategies"
	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
)

// Strategy applies one auth mode to a prepared request.
//
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Name returns the mode this strategy serves.
	Name() string
	// Validate checks the mode's slice of cfg without side effects.
	Validate(cfg *types.AuthConfig) error
	// Apply mutates req. On error req must be left unauthenticated.
	Apply(ctx context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error
}

// Builder is a thread-safe registry of strategies keyed by mode.
//
// Example usage:
//
//	builder := NewBuilder()
//	_ = builder.RegisterStrategy("bearer", strategies.NewBearerStrategy())
//	err := builder.Apply(ctx, prepared, requestAuth, collectionAuth)
type Builder struct {
	strategies map[string]Strategy
	mu         sync.RWMutex
}

// NewBuilder creates a Builder with no strategies.
func NewBuilder() *Builder {
	return &Builder{strategies: make(map[string]Strategy)}
}

// NewDefaultBuilder creates a Builder with a strategy for every mode except
// inherit, which Apply resolves itself. OAuth2 tokens come from tokens and
// are keyed under scopeID.
func NewDefaultBuilder(tokens strategies.TokenProvider, scopeID string) *Builder {
	b := NewBuilder()
	for _, s := range []Strategy{
		strategies.NewNoneStrategy(),
		strategies.NewBasicStrategy(),
		strategies.NewBearerStrategy(),
		strategies.NewDigestStrategy(),
		strategies.NewOAuth2Strategy(tokens, scopeID),
		strategies.NewAPIKeyStrategy(),
		strategies.NewAWSV4Strategy(nil),
		strategies.NewWSSEStrategy(),
	} {
		// Names are unique and match; registration cannot fail.
		_ = b.RegisterStrategy(s.Name(), s)
	}
	return b
}

// RegisterStrategy registers strategy under name. The name must be
// non-empty, match strategy.Name() and not already be registered.
func (b *Builder) RegisterStrategy(name string, strategy Strategy) error {
	if name == "" {
		return errors.New("strategy name cannot be empty")
	}
	if strategy == nil {
		return errors.New("strategy cannot be nil")
	}
	if name != strategy.Name() {
		return fmt.Errorf("strategy name mismatch: registered as %q but strategy.Name() returns %q",
			name, strategy.Name())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.strategies[name]; exists {
		return fmt.Errorf("strategy %q is already registered", name)
	}
	b.strategies[name] = strategy
	return nil
}

// GetStrategy returns the strategy registered under name.
func (b *Builder) GetStrategy(name string) (Strategy, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	strategy, exists := b.strategies[name]
	if !exists {
		return nil, fmt.Errorf("strategy %q not found", name)
	}
	return strategy, nil
}

// Validate checks the config that would apply to a request without
// touching the network.
func (b *Builder) Validate(requestAuth, collectionAuth *types.AuthConfig) error {
	effective, strategy, err := b.resolve(requestAuth, collectionAuth)
	if err != nil || strategy == nil {
		return err
	}
	return strategy.Validate(effective)
}

// Apply authenticates req. When requestAuth has mode inherit the
// collection's config is applied, otherwise the request's own; never both.
// Inherit with no collection config, and mode none, leave req untouched.
func (b *Builder) Apply(ctx context.Context, req *types.PreparedRequest, requestAuth, collectionAuth *types.AuthConfig) error {
	effective, strategy, err := b.resolve(requestAuth, collectionAuth)
	if err != nil {
		return err
	}
	if strategy == nil {
		return nil
	}
	logger.Debugw("applying request auth",
		"mode", effective.EffectiveMode(),
		"inherited", requestAuth.EffectiveMode() == types.ModeInherit)
	return strategy.Apply(ctx, req, effective)
}

// resolve returns the effective config and its strategy. A nil strategy
// means there is nothing to apply.
func (b *Builder) resolve(requestAuth, collectionAuth *types.AuthConfig) (*types.AuthConfig, Strategy, error) {
	effective := requestAuth.Resolve(collectionAuth)
	mode := effective.EffectiveMode()
	switch {
	case mode == types.ModeNone:
		return effective, nil, nil
	case mode == types.ModeInherit:
		return nil, nil, autherrors.NewConfigurationError("collection auth cannot use mode inherit", nil)
	case !mode.Valid():
		return nil, nil, autherrors.NewConfigurationError(fmt.Sprintf("unsupported auth mode %q", mode), nil)
	}

	strategy, err := b.GetStrategy(string(mode))
	if err != nil {
		return nil, nil, autherrors.NewConfigurationError(fmt.Sprintf("no strategy for auth mode %q", mode), err)
	}
	return effective, strategy, nil
}
