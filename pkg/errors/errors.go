// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the typed errors surfaced by the authentication engine.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrConfiguration is returned when an auth config is missing a required
	// field or carries an invalid value. No network call is made.
	ErrConfiguration = "configuration"

	// ErrTokenEndpoint is returned when a token endpoint answers with a non-2xx status.
	ErrTokenEndpoint = "token_endpoint"

	// ErrOAuthToken is returned when a token response carries an OAuth error
	// field or lacks an access token.
	ErrOAuthToken = "oauth_token"

	// ErrAuthorization is returned when the interactive authorization step is rejected.
	ErrAuthorization = "authorization"

	// ErrMalformedChallenge is returned when a digest challenge lacks realm or nonce.
	ErrMalformedChallenge = "malformed_challenge"

	// ErrUnsupportedDigestAlgorithm is returned when a digest challenge names
	// an algorithm other than MD5.
	ErrUnsupportedDigestAlgorithm = "unsupported_digest_algorithm"

	// ErrStorePersistence marks a credential store failure. It is logged, not propagated.
	ErrStorePersistence = "store_persistence"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, cause error) *Error {
	return NewError(ErrConfiguration, message, cause)
}

// NewTokenEndpointError creates a new token endpoint error
func NewTokenEndpointError(message string, cause error) *Error {
	return NewError(ErrTokenEndpoint, message, cause)
}

// NewOAuthTokenError creates a new OAuth token error
func NewOAuthTokenError(message string, cause error) *Error {
	return NewError(ErrOAuthToken, message, cause)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(message string, cause error) *Error {
	return NewError(ErrAuthorization, message, cause)
}

// NewMalformedChallengeError creates a new malformed challenge error
func NewMalformedChallengeError(message string, cause error) *Error {
	return NewError(ErrMalformedChallenge, message, cause)
}

// NewUnsupportedDigestAlgorithmError creates a new unsupported digest algorithm error
func NewUnsupportedDigestAlgorithmError(message string, cause error) *Error {
	return NewError(ErrUnsupportedDigestAlgorithm, message, cause)
}

// NewStorePersistenceError creates a new store persistence error
func NewStorePersistenceError(message string, cause error) *Error {
	return NewError(ErrStorePersistence, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// IsType reports whether any error in err's chain is an *Error of the given type.
func IsType(err error, errorType string) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errorType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsConfigurationError checks if the error is a configuration error
func IsConfigurationError(err error) bool {
	return IsType(err, ErrConfiguration)
}

// IsTokenEndpointError checks if the error is a token endpoint error
func IsTokenEndpointError(err error) bool {
	return IsType(err, ErrTokenEndpoint)
}

// IsOAuthTokenError checks if the error is an OAuth token error
func IsOAuthTokenError(err error) bool {
	return IsType(err, ErrOAuthToken)
}

// IsAuthorizationError checks if the error is an authorization error
func IsAuthorizationError(err error) bool {
	return IsType(err, ErrAuthorization)
}

// IsMalformedChallengeError checks if the error is a malformed challenge error
func IsMalformedChallengeError(err error) bool {
	return IsType(err, ErrMalformedChallenge)
}

// IsUnsupportedDigestAlgorithmError checks if the error is an unsupported digest algorithm error
func IsUnsupportedDigestAlgorithmError(err error) bool {
	return IsType(err, ErrUnsupportedDigestAlgorithm)
}

// IsStorePersistenceError checks if the error is a store persistence error
func IsStorePersistenceError(err error) bool {
	return IsType(err, ErrStorePersistence)
}

// IsInternalError checks if the error is an internal error
func IsInternalError(err error) bool {
	return IsType(err, ErrInternal)
}
