// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	envmocks "github.com/stacklok/toolhive-core/env/mocks"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/storage"
	"github.com/stacklok/reqauth/pkg/storage/filestore"
	"github.com/stacklok/reqauth/pkg/storage/keyringstore"
	"github.com/stacklok/reqauth/pkg/storage/redisstore"
	"github.com/stacklok/reqauth/pkg/storage/sqlite"
)

func TestNewWithEnv_DefaultsToMemory(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockEnv := envmocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(StoreEnvVar).Return("")

	store, err := NewWithEnv(t.Context(), Config{}, mockEnv)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryCredentialStore{}, store)
}

func TestNewWithEnv_EnvSelectsBackend(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockEnv := envmocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(StoreEnvVar).Return(" None ")

	store, err := NewWithEnv(t.Context(), Config{}, mockEnv)
	require.NoError(t, err)
	assert.IsType(t, &storage.NoopCredentialStore{}, store)
}

func TestNewWithEnv_ExplicitKind(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{"sqlite", Config{Kind: KindSQLite, Path: filepath.Join(dir, "c.db")}, &sqlite.CredentialStore{}},
		{"file", Config{Kind: KindFile, Path: filepath.Join(dir, "c.json")}, &filestore.Store{}},
		{"keyring", Config{Kind: KindKeyring}, &keyringstore.Store{}},
		{"redis", Config{Kind: KindRedis, RedisAddr: mr.Addr()}, &redisstore.Store{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			// Explicit kinds never consult the environment.
			mockEnv := envmocks.NewMockReader(ctrl)

			store, err := NewWithEnv(t.Context(), tt.cfg, mockEnv)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestNewWithEnv_UnknownKind(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockEnv := envmocks.NewMockReader(ctrl)

	_, err := NewWithEnv(t.Context(), Config{Kind: "etcd"}, mockEnv)
	require.Error(t, err)
	assert.True(t, autherrors.IsConfigurationError(err))
}
