// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keyringstore keeps credentials in the operating system keyring.
package keyringstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/storage"
)

// DefaultService is the keyring service name credentials are filed under.
const DefaultService = "reqauth"

// indexUser is the keyring entry listing every stored key, since keyrings
// cannot enumerate their own entries.
const indexUser = "__reqauth_index__"

// Store implements storage.CredentialStore on the OS keyring.
type Store struct {
	service string
	// mu serializes index read-modify-write cycles within the process.
	mu sync.Mutex
}

var _ storage.CredentialStore = (*Store)(nil)

// New returns a store filing entries under service.
func New(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

// Get reads the credential for key.
func (s *Store) Get(_ context.Context, key credentials.Key) (*credentials.Credential, error) {
	data, err := keyring.Get(s.service, key.String())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var cred credentials.Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Save writes cred and records key in the index.
func (s *Store) Save(_ context.Context, key credentials.Key, cred *credentials.Credential) error {
	if err := storage.CheckSavable(cred); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, key.String(), string(data)); err != nil {
		return autherrors.NewStorePersistenceError("failed to write keyring", err)
	}
	index, err := s.readIndex()
	if err != nil {
		return err
	}
	if !slices.Contains(index, key.String()) {
		index = append(index, key.String())
		return s.writeIndex(index)
	}
	return nil
}

// Delete removes the credential and its index entry.
func (s *Store) Delete(_ context.Context, key credentials.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, key.String()); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	index, err := s.readIndex()
	if err != nil {
		return err
	}
	pruned := slices.DeleteFunc(index, func(k string) bool { return k == key.String() })
	return s.writeIndex(pruned)
}

// List resolves every indexed key and returns the matching entries.
func (s *Store) List(ctx context.Context, filter storage.ListFilter) ([]storage.Entry, error) {
	s.mu.Lock()
	index, err := s.readIndex()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	entries := []storage.Entry{}
	for _, encoded := range index {
		key, err := credentials.ParseKey(encoded)
		if err != nil || !filter.Matches(key) {
			continue
		}
		cred, err := s.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, storage.Entry{Key: key, Credential: cred})
	}
	storage.SortEntries(entries)
	return entries, nil
}

// Close is a no-op.
func (*Store) Close() error { return nil }

func (s *Store) readIndex() ([]string, error) {
	data, err := keyring.Get(s.service, indexUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var index []string
	if err := json.Unmarshal([]byte(data), &index); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return index, nil
}

func (s *Store) writeIndex(index []string) error {
	if len(index) == 0 {
		if err := keyring.Delete(s.service, indexUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(s.service, indexUser, string(data)); err != nil {
		return autherrors.NewStorePersistenceError("failed to write keyring index", err)
	}
	return nil
}
