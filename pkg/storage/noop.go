// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
)

// NoopCredentialStore caches nothing. Get always returns ErrNotFound and
// writes succeed silently, so every call that may fetch will fetch.
type NoopCredentialStore struct{}

var _ CredentialStore = (*NoopCredentialStore)(nil)

// Get always returns ErrNotFound.
func (*NoopCredentialStore) Get(_ context.Context, _ credentials.Key) (*credentials.Credential, error) {
	return nil, ErrNotFound
}

// Save validates the credential and discards it.
func (*NoopCredentialStore) Save(_ context.Context, _ credentials.Key, cred *credentials.Credential) error {
	return CheckSavable(cred)
}

// Delete is a no-op that always succeeds.
func (*NoopCredentialStore) Delete(_ context.Context, _ credentials.Key) error {
	return nil
}

// List always returns an empty slice.
func (*NoopCredentialStore) List(_ context.Context, _ ListFilter) ([]Entry, error) {
	return []Entry{}, nil
}

// Close is a no-op that always succeeds.
func (*NoopCredentialStore) Close() error { return nil }
