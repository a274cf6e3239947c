// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package redisstore provides a Redis-backed credential store, for sharing
// cached tokens between processes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
	"github.com/stacklok/reqauth/pkg/storage"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "reqauth:"

const (
	credentialSegment = "cred:"
	scanBatch         = 100
	connectAttempts   = 3
)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is a single "host:port" address.
	Addr string
	// Username and Password authenticate with Redis ACLs. Both optional.
	Username string
	Password string
	DB       int
	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store implements storage.CredentialStore on Redis. Credentials are
// stored as JSON without a TTL; expiry stays the engine's decision.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ storage.CredentialStore = (*Store)(nil)

// New connects to Redis and verifies the connection, retrying briefly.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, autherrors.NewConfigurationError("redis address is required", nil)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Debugw("redis not reachable, retrying", "addr", cfg.Addr, "error", err, "backoff", d)
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, autherrors.NewStorePersistenceError("failed to connect to redis", err)
	}

	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps a pre-configured client.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) redisKey(key credentials.Key) string {
	return s.keyPrefix + credentialSegment + key.String()
}

// Get loads the credential stored under key.
func (s *Store) Get(ctx context.Context, key credentials.Key) (*credentials.Credential, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var cred credentials.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Save stores cred under key.
func (s *Store) Save(ctx context.Context, key credentials.Key, cred *credentials.Credential) error {
	if err := storage.CheckSavable(cred); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), data, 0).Err(); err != nil {
		return autherrors.NewStorePersistenceError("failed to save credential", err)
	}
	return nil
}

// Delete removes the credential under key.
func (s *Store) Delete(ctx context.Context, key credentials.Key) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// List scans the store's keyspace and returns matching entries ordered by key.
func (s *Store) List(ctx context.Context, filter storage.ListFilter) ([]storage.Entry, error) {
	prefix := s.keyPrefix + credentialSegment
	entries := []storage.Entry{}

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan credentials: %w", err)
		}
		for _, rk := range keys {
			key, err := credentials.ParseKey(strings.TrimPrefix(rk, prefix))
			if err != nil {
				logger.Warnw("skipping unparseable credential key", "key", rk, "error", err)
				continue
			}
			if !filter.Matches(key) {
				continue
			}
			cred, err := s.Get(ctx, key)
			if errors.Is(err, storage.ErrNotFound) {
				// Deleted between SCAN and GET.
				continue
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, storage.Entry{Key: key, Credential: cred})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	storage.SortEntries(entries)
	return entries, nil
}
