// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storagetest holds the behavior every CredentialStore backend must share.
package storagetest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	"github.com/stacklok/reqauth/pkg/storage"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) storage.CredentialStore

// Run exercises the CredentialStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	created := time.UnixMilli(1_700_000_000_000).UTC()
	key := credentials.NewKey("collection-1", "https://auth.example.com/token", "default")

	fresh := func(t *testing.T) storage.CredentialStore {
		t.Helper()
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := fresh(t)
		_, err := s.Get(t.Context(), key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("round trip preserves credential and expiry", func(t *testing.T) {
		s := fresh(t)
		cred := &credentials.Credential{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "Bearer",
			Scope:        "read write",
			IDToken:      "id-1",
			ExpiresIn:    3600,
			Extra:        map[string]any{"tenant": "acme"},
		}
		cred.Stamp(created)

		for _, now := range []time.Time{created, created.Add(3600 * time.Second), created.Add(2 * time.Hour)} {
			before := credentials.IsExpired(cred, now)
			require.NoError(t, s.Save(t.Context(), key, cred))
			got, err := s.Get(t.Context(), key)
			require.NoError(t, err)
			assert.Equal(t, before, credentials.IsExpired(got, now), "expiry at %v changed after persistence", now)
		}

		got, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		fields := func(c *credentials.Credential) []any {
			return []any{c.AccessToken, c.RefreshToken, c.TokenType, c.Scope, c.IDToken, c.ExpiresIn,
				c.CreatedAt.UnixMilli(), c.ExpiresAt.UnixMilli(), c.Extra["tenant"]}
		}
		if diff := cmp.Diff(fields(cred), fields(got)); diff != "" {
			t.Fatalf("credential changed by store (-saved +loaded):\n%s", diff)
		}
	})

	t.Run("credential without expiry stays non-expiring", func(t *testing.T) {
		s := fresh(t)
		cred := &credentials.Credential{AccessToken: "long-lived"}
		cred.Stamp(created)
		require.NoError(t, s.Save(t.Context(), key, cred))

		got, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.False(t, credentials.IsExpired(got, created.Add(24*365*time.Hour)))
	})

	t.Run("save rejects credential without access token", func(t *testing.T) {
		s := fresh(t)
		err := s.Save(t.Context(), key, &credentials.Credential{RefreshToken: "r"})
		require.ErrorIs(t, err, storage.ErrMissingAccessToken)
		require.ErrorIs(t, s.Save(t.Context(), key, nil), storage.ErrMissingAccessToken)

		_, err = s.Get(t.Context(), key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := fresh(t)
		require.NoError(t, s.Save(t.Context(), key, &credentials.Credential{AccessToken: "first"}))
		require.NoError(t, s.Save(t.Context(), key, &credentials.Credential{AccessToken: "second"}))

		got, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.Equal(t, "second", got.AccessToken)
	})

	t.Run("store does not alias caller values", func(t *testing.T) {
		s := fresh(t)
		cred := &credentials.Credential{AccessToken: "original"}
		require.NoError(t, s.Save(t.Context(), key, cred))
		cred.AccessToken = "mutated"

		got, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.Equal(t, "original", got.AccessToken)

		got.AccessToken = "mutated-again"
		again, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		assert.Equal(t, "original", again.AccessToken)
	})

	t.Run("credentials id separates entries for one url", func(t *testing.T) {
		s := fresh(t)
		other := credentials.NewKey(key.ScopeID, key.URL, "other")
		require.NoError(t, s.Save(t.Context(), key, &credentials.Credential{AccessToken: "a"}))
		require.NoError(t, s.Save(t.Context(), other, &credentials.Credential{AccessToken: "b"}))

		a, err := s.Get(t.Context(), key)
		require.NoError(t, err)
		b, err := s.Get(t.Context(), other)
		require.NoError(t, err)
		assert.Equal(t, "a", a.AccessToken)
		assert.Equal(t, "b", b.AccessToken)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := fresh(t)
		require.NoError(t, s.Delete(t.Context(), key))
		require.NoError(t, s.Save(t.Context(), key, &credentials.Credential{AccessToken: "a"}))
		require.NoError(t, s.Delete(t.Context(), key))
		require.NoError(t, s.Delete(t.Context(), key))

		_, err := s.Get(t.Context(), key)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list filters by scope and url", func(t *testing.T) {
		s := fresh(t)
		keys := []credentials.Key{
			credentials.NewKey("scope-a", "https://one.example.com/token", "x"),
			credentials.NewKey("scope-a", "https://two.example.com/token", "x"),
			credentials.NewKey("scope-b", "https://one.example.com/token", "x"),
		}
		for i, k := range keys {
			require.NoError(t, s.Save(t.Context(), k, &credentials.Credential{AccessToken: string(rune('a' + i))}))
		}

		all, err := s.List(t.Context(), storage.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		scoped, err := s.List(t.Context(), storage.ListFilter{ScopeID: "scope-a"})
		require.NoError(t, err)
		assert.Len(t, scoped, 2)
		for _, e := range scoped {
			assert.Equal(t, "scope-a", e.Key.ScopeID)
			require.NotNil(t, e.Credential)
		}

		byURL, err := s.List(t.Context(), storage.ListFilter{URL: "https://one.example.com/token"})
		require.NoError(t, err)
		assert.Len(t, byURL, 2)

		removed, err := storage.DeleteScope(t.Context(), s, "scope-a")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		rest, err := s.List(t.Context(), storage.ListFilter{})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "scope-b", rest[0].Key.ScopeID)
	})
}
