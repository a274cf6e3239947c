// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package validation provides functions for validating input data.
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidateHTTPHeaderName validates that a string is a valid HTTP header name per RFC 7230.
// It checks for CRLF injection, control characters, and ensures RFC token compliance.
func ValidateHTTPHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name cannot be empty")
	}

	if len(name) > 256 {
		return fmt.Errorf("header name exceeds maximum length of 256 bytes")
	}

	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid HTTP header name %q: contains invalid characters", name)
	}

	return nil
}

// ValidateHTTPHeaderValue validates that a string is a valid HTTP header value per RFC 7230.
// Empty values are allowed; additional parameters and api keys may be blank.
func ValidateHTTPHeaderValue(value string) error {
	if len(value) > 8192 {
		return fmt.Errorf("header value exceeds maximum length of 8192 bytes")
	}

	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid HTTP header value: contains control characters")
	}

	return nil
}

// ValidateEndpointURL checks that raw is an absolute http or https URL.
// It is used for token, refresh, authorization and callback URLs.
func ValidateEndpointURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme: %s", raw)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host: %s", raw)
	}

	return nil
}
