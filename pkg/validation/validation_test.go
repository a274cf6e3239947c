// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/reqauth/pkg/validation"
)

func TestValidateHTTPHeaderName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"simple", "X-Api-Key", false},
		{"authorization", "Authorization", false},
		{"empty", "", true},
		{"space", "X Api", true},
		{"crlf", "X-Api\r\nInjected", true},
		{"colon", "X:Api", true},
		{"too_long", strings.Repeat("a", 257), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validation.ValidateHTTPHeaderName(tc.input)
			if tc.expectErr {
				assert.Error(t, err, "Expected error for input: %q", tc.input)
			} else {
				assert.NoError(t, err, "Did not expect error for input: %q", tc.input)
			}
		})
	}
}

func TestValidateHTTPHeaderValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"token", "Bearer abc.def", false},
		{"empty_allowed", "", false},
		{"newline", "abc\ndef", true},
		{"null", "abc\x00", true},
		{"too_long", strings.Repeat("v", 8193), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validation.ValidateHTTPHeaderValue(tc.input)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{"https", "https://auth.example.com/oauth/token", false},
		{"http_with_port", "http://localhost:8080/callback", false},
		{"with_query", "https://idp.example.com/token?tenant=a", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"relative", "/oauth/token", true},
		{"ftp", "ftp://example.com/token", true},
		{"no_host", "https:///token", true},
		{"unparsable", "http://[::1", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validation.ValidateEndpointURL(tc.input)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
