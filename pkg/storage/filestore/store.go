// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package filestore keeps credentials in a single JSON document on disk,
// guarded by a lock file so that several processes can share it.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
	"github.com/stacklok/reqauth/pkg/storage"
)

// lockTimeout is the maximum time to wait for the file lock.
const lockTimeout = 2 * time.Second

const fileVersion = 1

// document is the on-disk layout.
type document struct {
	Version     int                                `json:"version"`
	Credentials map[string]*credentials.Credential `json:"credentials"`
}

// Store implements storage.CredentialStore on a JSON file.
type Store struct {
	path string
}

var _ storage.CredentialStore = (*Store)(nil)

// New returns a store backed by the file at path. The file is created on
// first write.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, autherrors.NewConfigurationError("credential file path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, autherrors.NewStorePersistenceError("creating credential directory", err)
	}
	return &Store{path: path}, nil
}

// Get reads the credential for key.
func (s *Store) Get(ctx context.Context, key credentials.Key) (*credentials.Credential, error) {
	var found *credentials.Credential
	err := s.withLock(ctx, func(doc *document) bool {
		found = doc.Credentials[key.String()]
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

// Save writes cred under key.
func (s *Store) Save(ctx context.Context, key credentials.Key, cred *credentials.Credential) error {
	if err := storage.CheckSavable(cred); err != nil {
		return err
	}
	return s.withLock(ctx, func(doc *document) bool {
		doc.Credentials[key.String()] = cred.Clone()
		return true
	})
}

// Delete removes key from the file.
func (s *Store) Delete(ctx context.Context, key credentials.Key) error {
	return s.withLock(ctx, func(doc *document) bool {
		if _, ok := doc.Credentials[key.String()]; !ok {
			return false
		}
		delete(doc.Credentials, key.String())
		return true
	})
}

// List returns matching entries ordered by key.
func (s *Store) List(ctx context.Context, filter storage.ListFilter) ([]storage.Entry, error) {
	entries := []storage.Entry{}
	err := s.withLock(ctx, func(doc *document) bool {
		for encoded, cred := range doc.Credentials {
			key, err := credentials.ParseKey(encoded)
			if err != nil {
				logger.Warnw("skipping unparseable credential key", "key", encoded, "path", s.path)
				continue
			}
			if filter.Matches(key) {
				entries = append(entries, storage.Entry{Key: key, Credential: cred})
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	storage.SortEntries(entries)
	return entries, nil
}

// Close is a no-op.
func (*Store) Close() error { return nil }

// withLock loads the document under the lock, runs fn, and writes the
// document back when fn reports a change.
func (s *Store) withLock(ctx context.Context, fn func(*document) bool) error {
	fileLock := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return autherrors.NewStorePersistenceError("failed to acquire lock", err)
	}
	if !locked {
		return autherrors.NewStorePersistenceError(fmt.Sprintf("failed to acquire lock: timeout after %v", lockTimeout), nil)
	}
	defer func() { _ = fileLock.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if !fn(doc) {
		return nil
	}
	return s.write(doc)
}

func (s *Store) load() (*document, error) {
	doc := &document{Version: fileVersion, Credentials: map[string]*credentials.Credential{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", s.path, err)
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]*credentials.Credential{}
	}
	return doc, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *Store) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return autherrors.NewStorePersistenceError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return autherrors.NewStorePersistenceError("failed to set credential file mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return autherrors.NewStorePersistenceError("failed to write credential file", err)
	}
	if err := tmp.Close(); err != nil {
		return autherrors.NewStorePersistenceError("failed to close credential file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return autherrors.NewStorePersistenceError("failed to replace credential file", err)
	}
	return nil
}
