// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/reqauth/pkg/storage/factory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Parallel()

	s, err := LoadSettings(viper.New(), writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, factory.KindMemory, s.Store)
	assert.Equal(t, DefaultScope, s.Scope)
	assert.Equal(t, DefaultAuthFile, s.AuthFile)
	assert.Equal(t, DefaultAuthTimeout, s.AuthTimeout)
	assert.False(t, s.Dedupe)
}

func TestLoadSettings_ConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store: sqlite
store-path: /tmp/creds.db
scope: team-a
http-timeout: 5s
dedupe: true
no-browser: true
`)
	s, err := LoadSettings(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, factory.KindSQLite, s.Store)
	assert.Equal(t, "team-a", s.Scope)
	assert.Equal(t, 5*time.Second, s.HTTPTimeout)
	assert.True(t, s.Dedupe)
	assert.True(t, s.NoBrowser)
	assert.Equal(t, factory.Config{Kind: factory.KindSQLite, Path: "/tmp/creds.db"}, s.StoreConfig())
}

//nolint:paralleltest // sets process environment
func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	t.Setenv("REQAUTH_STORE", "redis")
	t.Setenv("REQAUTH_REDIS_ADDR", "localhost:6379")
	t.Setenv("REQAUTH_REDIS_DB", "3")

	s, err := LoadSettings(viper.New(), writeConfig(t, "store: file\n"))
	require.NoError(t, err)
	assert.Equal(t, factory.KindRedis, s.Store)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
	assert.Equal(t, 3, s.RedisDB)
}

//nolint:paralleltest // sets process environment
func TestLoadSettings_EnvFile(t *testing.T) {
	// Registers restore of the variables the env file will set.
	t.Setenv("REQAUTH_SCOPE", "")
	require.NoError(t, os.Unsetenv("REQAUTH_SCOPE"))
	t.Setenv("REQAUTH_STORE", "file")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REQAUTH_SCOPE=from-env-file\nREQAUTH_STORE=redis\n"), 0o600))

	v := viper.New()
	v.Set(KeyEnvFile, envFile)
	s, err := LoadSettings(v, writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", s.Scope)
	assert.Equal(t, factory.KindFile, s.Store)

	v = viper.New()
	v.Set(KeyEnvFile, filepath.Join(t.TempDir(), "missing.env"))
	_, err = LoadSettings(v, writeConfig(t, ""))
	require.Error(t, err)
}

func TestLoadSettings_FlagOverridesFile(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set(KeyScope, "from-flag")
	s, err := LoadSettings(v, writeConfig(t, "scope: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-flag", s.Scope)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{name: "missing explicit file", path: func(t *testing.T) string {
			t.Helper()
			return filepath.Join(t.TempDir(), "nope.yaml")
		}},
		{name: "invalid store", path: func(t *testing.T) string {
			t.Helper()
			return writeConfig(t, "store: etcd\n")
		}},
		{name: "empty scope", path: func(t *testing.T) string {
			t.Helper()
			return writeConfig(t, "scope: \"\"\n")
		}},
		{name: "malformed yaml", path: func(t *testing.T) string {
			t.Helper()
			return writeConfig(t, "store: [\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadSettings(viper.New(), tt.path(t))
			require.Error(t, err)
		})
	}
}

func TestSettings_HTTPClient(t *testing.T) {
	t.Parallel()

	s := &Settings{HTTPTimeout: 3 * time.Second}
	client, err := s.HTTPClient()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, client.Timeout)

	s.ProxyURL = "::not a url"
	_, err = s.HTTPClient()
	require.Error(t, err)
}
