// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	"github.com/stacklok/reqauth/pkg/storage"
	"github.com/stacklok/reqauth/pkg/storage/storagetest"
)

func TestMemoryCredentialStore(t *testing.T) {
	t.Parallel()
	storagetest.Run(t, func(_ *testing.T) storage.CredentialStore {
		return storage.NewMemoryCredentialStore()
	})
}

func TestMemoryCredentialStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := storage.NewMemoryCredentialStore()
	key := credentials.NewKey("scope", "https://auth.example.com/token", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Save(t.Context(), key, &credentials.Credential{AccessToken: "t"})
			_, _ = s.Get(t.Context(), key)
			_, _ = s.List(t.Context(), storage.ListFilter{})
		}()
	}
	wg.Wait()

	got, err := s.Get(t.Context(), key)
	require.NoError(t, err)
	assert.Equal(t, "t", got.AccessToken)
}

func TestNoopCredentialStore(t *testing.T) {
	t.Parallel()

	s := &storage.NoopCredentialStore{}
	key := credentials.NewKey("scope", "https://auth.example.com/token", "")

	require.NoError(t, s.Save(t.Context(), key, &credentials.Credential{AccessToken: "t"}))
	require.ErrorIs(t, s.Save(t.Context(), key, &credentials.Credential{}), storage.ErrMissingAccessToken)

	_, err := s.Get(t.Context(), key)
	require.ErrorIs(t, err, storage.ErrNotFound)

	entries, err := s.List(t.Context(), storage.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, s.Delete(t.Context(), key))
	assert.NoError(t, s.Close())
}

func TestListFilter_Matches(t *testing.T) {
	t.Parallel()

	key := credentials.NewKey("scope", "https://a.example.com/token", "id")
	tests := []struct {
		name   string
		filter storage.ListFilter
		want   bool
	}{
		{"empty matches all", storage.ListFilter{}, true},
		{"scope match", storage.ListFilter{ScopeID: "scope"}, true},
		{"scope mismatch", storage.ListFilter{ScopeID: "other"}, false},
		{"url match", storage.ListFilter{URL: "https://a.example.com/token"}, true},
		{"url mismatch", storage.ListFilter{ScopeID: "scope", URL: "https://b.example.com/token"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.filter.Matches(key))
		})
	}
}
