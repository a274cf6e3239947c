// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package awsv4

import "errors"

// ErrMissingRegion is returned when no AWS region is configured.
var ErrMissingRegion = errors.New("AWS region is required")

// ErrMissingService is returned when no AWS service name is configured.
var ErrMissingService = errors.New("AWS service is required")

// ErrNoCredentials is returned when the default chain yields no provider.
var ErrNoCredentials = errors.New("no AWS credentials provider configured")
