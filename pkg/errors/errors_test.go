// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrConfiguration,
				Message: "clientId is required",
				Cause:   errors.New("underlying error"),
			},
			want: "configuration: clientId is required: underlying error",
		},
		{
			name: "error without cause",
			err: &Error{
				Type:    ErrMalformedChallenge,
				Message: "missing nonce",
			},
			want: "malformed_challenge: missing nonce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := NewInternalError("boom", cause)
	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, NewInternalError("boom", nil).Unwrap())
}

func TestNewErrorConstructors(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")

	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    string
	}{
		{"NewConfigurationError", NewConfigurationError, ErrConfiguration},
		{"NewTokenEndpointError", NewTokenEndpointError, ErrTokenEndpoint},
		{"NewOAuthTokenError", NewOAuthTokenError, ErrOAuthToken},
		{"NewAuthorizationError", NewAuthorizationError, ErrAuthorization},
		{"NewMalformedChallengeError", NewMalformedChallengeError, ErrMalformedChallenge},
		{"NewUnsupportedDigestAlgorithmError", NewUnsupportedDigestAlgorithmError, ErrUnsupportedDigestAlgorithm},
		{"NewStorePersistenceError", NewStorePersistenceError, ErrStorePersistence},
		{"NewInternalError", NewInternalError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.constructor("test message", cause)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, "test message", err.Message)
			assert.Same(t, cause, err.Cause)
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"configuration matches", NewConfigurationError("x", nil), IsConfigurationError, true},
		{"configuration rejects other type", NewInternalError("x", nil), IsConfigurationError, false},
		{"plain error never matches", errors.New("plain"), IsConfigurationError, false},
		{"nil never matches", nil, IsTokenEndpointError, false},
		{"wrapped with fmt", fmt.Errorf("fetching: %w", NewTokenEndpointError("x", nil)), IsTokenEndpointError, true},
		{
			name:    "nested typed error is found below another type",
			err:     NewInternalError("outer", NewOAuthTokenError("inner", nil)),
			checker: IsOAuthTokenError,
			want:    true,
		},
		{"authorization", NewAuthorizationError("x", nil), IsAuthorizationError, true},
		{"malformed challenge", NewMalformedChallengeError("x", nil), IsMalformedChallengeError, true},
		{"unsupported algorithm", NewUnsupportedDigestAlgorithmError("x", nil), IsUnsupportedDigestAlgorithmError, true},
		{"store persistence", NewStorePersistenceError("x", nil), IsStorePersistenceError, true},
		{"internal", NewInternalError("x", nil), IsInternalError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}
