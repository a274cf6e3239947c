// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the credential store contract used by the OAuth2
// token manager, plus the in-process implementations of it.
package storage

import (
	"context"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
)

//go:generate mockgen -destination=mocks/mock_credential_store.go -package=mocks -source=interfaces.go CredentialStore

// CredentialStore persists OAuth2 credentials by key.
//
// Implementations must be safe for concurrent use. They must never persist
// a credential without an access token, and must not mutate the values
// they are given or hand out.
type CredentialStore interface {
	// Get returns the credential stored under key, or ErrNotFound.
	Get(ctx context.Context, key credentials.Key) (*credentials.Credential, error)
	// Save stores cred under key, replacing any previous value.
	// It returns ErrMissingAccessToken when cred has no access token.
	Save(ctx context.Context, key credentials.Key, cred *credentials.Credential) error
	// Delete removes the credential under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key credentials.Key) error
	// List returns the stored entries matching the filter.
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// Entry is a stored credential together with its key.
type Entry struct {
	Key        credentials.Key
	Credential *credentials.Credential
}

// ListFilter configures filtering for List operations.
type ListFilter struct {
	// ScopeID filters by scope. Empty matches all scopes.
	ScopeID string
	// URL filters by token URL. Empty matches all URLs.
	URL string
}

// Matches reports whether key passes the filter.
func (f ListFilter) Matches(key credentials.Key) bool {
	if f.ScopeID != "" && f.ScopeID != key.ScopeID {
		return false
	}
	if f.URL != "" && f.URL != key.URL {
		return false
	}
	return true
}

// CheckSavable returns ErrMissingAccessToken when cred must not be persisted.
func CheckSavable(cred *credentials.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return ErrMissingAccessToken
	}
	return nil
}

// DeleteScope removes every credential stored for the given scope and
// returns how many were removed.
func DeleteScope(ctx context.Context, store CredentialStore, scopeID string) (int, error) {
	entries, err := store.List(ctx, ListFilter{ScopeID: scopeID})
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err := store.Delete(ctx, e.Key); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}
