// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	"github.com/stacklok/reqauth/pkg/logger"
)

// MemoryCredentialStore keeps credentials in process memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[credentials.Key]*credentials.Credential
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[credentials.Key]*credentials.Credential)}
}

// Get returns a copy of the credential stored under key.
func (s *MemoryCredentialStore) Get(_ context.Context, key credentials.Key) (*credentials.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cred.Clone(), nil
}

// Save stores a copy of cred under key.
func (s *MemoryCredentialStore) Save(_ context.Context, key credentials.Key, cred *credentials.Credential) error {
	if err := CheckSavable(cred); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[key] = cred.Clone()
	logger.Debugw("stored credential", "scope", key.ScopeID, "url", key.URL, "credentials_id", key.CredentialsID)
	return nil
}

// Delete removes the credential under key, if any.
func (s *MemoryCredentialStore) Delete(_ context.Context, key credentials.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, key)
	return nil
}

// List returns matching entries ordered by key.
func (s *MemoryCredentialStore) List(_ context.Context, filter ListFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.creds))
	for key, cred := range s.creds {
		if filter.Matches(key) {
			entries = append(entries, Entry{Key: key, Credential: cred.Clone()})
		}
	}
	SortEntries(entries)
	return entries, nil
}

// Close is a no-op.
func (*MemoryCredentialStore) Close() error { return nil }

// SortEntries orders entries by their encoded key.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
}
