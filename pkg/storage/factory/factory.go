// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package factory builds the configured credential store backend.
package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/stacklok/toolhive-core/env"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/storage"
	"github.com/stacklok/reqauth/pkg/storage/filestore"
	"github.com/stacklok/reqauth/pkg/storage/keyringstore"
	"github.com/stacklok/reqauth/pkg/storage/redisstore"
	"github.com/stacklok/reqauth/pkg/storage/sqlite"
)

// Kind names a credential store backend.
type Kind string

// Supported backends.
const (
	KindMemory  Kind = "memory"
	KindNone    Kind = "none"
	KindSQLite  Kind = "sqlite"
	KindFile    Kind = "file"
	KindKeyring Kind = "keyring"
	KindRedis   Kind = "redis"
)

// StoreEnvVar selects the backend when Config.Kind is empty.
const StoreEnvVar = "REQAUTH_CREDENTIAL_STORE"

// Config selects and configures a backend.
type Config struct {
	Kind Kind
	// Path is the database or JSON file for sqlite and file. Defaults to a
	// file under the XDG data directory.
	Path           string
	RedisAddr      string
	RedisPrefix    string
	RedisDB        int
	KeyringService string
}

// Kinds lists every backend name in display order.
func Kinds() []Kind {
	return []Kind{KindMemory, KindNone, KindSQLite, KindFile, KindKeyring, KindRedis}
}

// New builds the store described by cfg using the OS environment.
func New(ctx context.Context, cfg Config) (storage.CredentialStore, error) {
	return NewWithEnv(ctx, cfg, &env.OSReader{})
}

// NewWithEnv builds the store with an injected env reader for testability.
func NewWithEnv(ctx context.Context, cfg Config, envReader env.Reader) (storage.CredentialStore, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = Kind(strings.ToLower(strings.TrimSpace(envReader.Getenv(StoreEnvVar))))
	}
	if kind == "" {
		kind = KindMemory
	}

	switch kind {
	case KindMemory:
		return storage.NewMemoryCredentialStore(), nil
	case KindNone:
		return &storage.NoopCredentialStore{}, nil
	case KindSQLite:
		path, err := dataPath(cfg.Path, "credentials.db")
		if err != nil {
			return nil, err
		}
		return sqlite.NewCredentialStore(ctx, path)
	case KindFile:
		path, err := dataPath(cfg.Path, "credentials.json")
		if err != nil {
			return nil, err
		}
		return filestore.New(path)
	case KindKeyring:
		return keyringstore.New(cfg.KeyringService), nil
	case KindRedis:
		return redisstore.New(ctx, redisstore.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB, KeyPrefix: cfg.RedisPrefix})
	default:
		return nil, autherrors.NewConfigurationError(fmt.Sprintf("unknown credential store %q", kind), nil)
	}
}

func dataPath(explicit, name string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := xdg.DataFile(filepath.Join("reqauth", name))
	if err != nil {
		return "", autherrors.NewStorePersistenceError("resolving credential store path", err)
	}
	return path, nil
}
