// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/stacklok/reqauth/pkg/auth/awsv4"
	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// CredentialResolver resolves AWS credentials for a config.
type CredentialResolver func(ctx context.Context, cfg awsv4.Config) (aws.Credentials, error)

// AWSV4Strategy resolves credentials and arms SigV4 signing. Signing itself
// happens in the transport, after every other header is in place.
type AWSV4Strategy struct {
	resolve CredentialResolver
}

// NewAWSV4Strategy creates an AWSV4Strategy. A nil resolver uses
// awsv4.ResolveCredentials.
func NewAWSV4Strategy(resolve CredentialResolver) *AWSV4Strategy {
	if resolve == nil {
		resolve = awsv4.ResolveCredentials
	}
	return &AWSV4Strategy{resolve: resolve}
}

// Name returns the strategy identifier.
func (*AWSV4Strategy) Name() string { return string(types.ModeAWSV4) }

// Validate requires an awsv4 block with service and region.
func (*AWSV4Strategy) Validate(cfg *types.AuthConfig) error {
	if cfg == nil || cfg.AWSV4 == nil {
		return autherrors.NewConfigurationError("awsv4 auth requires an awsv4 block", nil)
	}
	return cfg.AWSV4.Validate()
}

// Apply resolves credentials and records the signer on the request.
func (s *AWSV4Strategy) Apply(ctx context.Context, req *types.PreparedRequest, cfg *types.AuthConfig) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	creds, err := s.resolve(ctx, *cfg.AWSV4)
	if err != nil {
		return err
	}
	signer, err := awsv4.NewSigner(cfg.AWSV4.Region, cfg.AWSV4.Service)
	if err != nil {
		return autherrors.NewConfigurationError("creating aws signer", err)
	}
	req.AWSV4 = &types.AWSV4Signing{Signer: signer, Credentials: creds}
	return nil
}
