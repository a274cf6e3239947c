// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package awsv4 signs outgoing requests with AWS Signature Version 4.
package awsv4

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
)

// Config is the awsv4 auth mode configuration.
type Config struct {
	AccessKeyID     string `json:"accessKeyId,omitempty" yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" yaml:"secretAccessKey,omitempty"`
	SessionToken    string `json:"sessionToken,omitempty" yaml:"sessionToken,omitempty"`
	Service         string `json:"service" yaml:"service"`
	Region          string `json:"region" yaml:"region"`
	// ProfileName selects a shared config profile when no static keys are set.
	ProfileName string `json:"profileName,omitempty" yaml:"profileName,omitempty"`
}

// String implements fmt.Stringer, redacting secrets.
func (c Config) String() string {
	secret := "<empty>"
	if c.SecretAccessKey != "" {
		secret = "[REDACTED]"
	}
	return fmt.Sprintf("Config{AccessKeyID: %s, SecretAccessKey: %s, Service: %s, Region: %s, ProfileName: %s}",
		c.AccessKeyID, secret, c.Service, c.Region, c.ProfileName)
}

// Validate checks that service and region are set.
func (c Config) Validate() error {
	if c.Service == "" {
		return autherrors.NewConfigurationError("awsv4 service is required", nil)
	}
	if c.Region == "" {
		return autherrors.NewConfigurationError("awsv4 region is required", ErrMissingRegion)
	}
	return nil
}

// HasStaticKeys reports whether both access and secret keys are configured.
func (c Config) HasStaticKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ResolveCredentials returns the static keys from cfg, or loads credentials
// from the default chain using cfg.ProfileName when the keys are absent.
func ResolveCredentials(ctx context.Context, cfg Config) (aws.Credentials, error) {
	if err := cfg.Validate(); err != nil {
		return aws.Credentials{}, err
	}
	if cfg.HasStaticKeys() {
		return aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "reqauth",
		}, nil
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.ProfileName != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.ProfileName))
	}
	logger.Debugw("loading aws credentials from default chain", "profile", cfg.ProfileName)
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Credentials{}, autherrors.NewConfigurationError("failed to load AWS configuration", err)
	}
	if awsCfg.Credentials == nil {
		return aws.Credentials{}, autherrors.NewConfigurationError("no AWS credentials available", ErrNoCredentials)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, autherrors.NewConfigurationError("failed to retrieve AWS credentials", err)
	}
	return creds, nil
}
