// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads CLI settings and auth files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/reqauth/pkg/networking"
	"github.com/stacklok/reqauth/pkg/storage/factory"
)

// EnvPrefix prefixes every environment override, e.g. REQAUTH_STORE.
const EnvPrefix = "REQAUTH"

// Setting keys shared by flags, environment and the config file.
const (
	KeyDebug       = "debug"
	KeyStore       = "store"
	KeyStorePath   = "store-path"
	KeyRedisAddr   = "redis-addr"
	KeyRedisPrefix = "redis-prefix"
	KeyRedisDB     = "redis-db"
	KeyScope       = "scope"
	KeyHTTPTimeout = "http-timeout"
	KeyCABundle    = "ca-bundle"
	KeyProxy       = "proxy"
	KeyAuthTimeout = "auth-timeout"
	KeyNoBrowser   = "no-browser"
	KeyDedupe      = "dedupe"
	KeyFile        = "file"
	KeyEnvFile     = "env-file"
)

// Defaults.
const (
	DefaultScope       = "default"
	DefaultAuthFile    = "auth.yaml"
	DefaultAuthTimeout = 5 * time.Minute
)

// Settings are the resolved CLI settings.
type Settings struct {
	Debug bool

	Store       factory.Kind
	StorePath   string
	RedisAddr   string
	RedisPrefix string
	RedisDB     int

	// Scope isolates cached credentials, like a collection id.
	Scope string

	HTTPTimeout time.Duration
	CABundle    string
	ProxyURL    string

	AuthTimeout time.Duration
	NoBrowser   bool
	Dedupe      bool

	AuthFile string
}

// defaultPathGenerator returns the default config path under XDG_CONFIG_HOME.
var defaultPathGenerator = func() string {
	return filepath.Join(xdg.ConfigHome, "reqauth", "config.yaml")
}

// getConfigPath can be replaced in tests.
var getConfigPath = defaultPathGenerator

// DefaultConfigPath returns where settings are read from when no explicit
// config file is given.
func DefaultConfigPath() string { return getConfigPath() }

// SetDefaults registers setting defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStore, string(factory.KindMemory))
	v.SetDefault(KeyScope, DefaultScope)
	v.SetDefault(KeyHTTPTimeout, networking.HttpTimeout)
	v.SetDefault(KeyAuthTimeout, DefaultAuthTimeout)
	v.SetDefault(KeyRedisPrefix, "")
	v.SetDefault(KeyFile, DefaultAuthFile)
}

// LoadSettings resolves settings from v, which should already have flags
// bound. configFile overrides the default config path; an explicit file
// must exist while a missing default file is ignored.
func LoadSettings(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := configFile
	if path == "" {
		path = getConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if configFile != "" || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if envFile := v.GetString(KeyEnvFile); envFile != "" {
		// Variables already present in the environment win.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	s := &Settings{
		Debug:       v.GetBool(KeyDebug),
		Store:       factory.Kind(strings.ToLower(v.GetString(KeyStore))),
		StorePath:   v.GetString(KeyStorePath),
		RedisAddr:   v.GetString(KeyRedisAddr),
		RedisPrefix: v.GetString(KeyRedisPrefix),
		RedisDB:     v.GetInt(KeyRedisDB),
		Scope:       v.GetString(KeyScope),
		HTTPTimeout: v.GetDuration(KeyHTTPTimeout),
		CABundle:    v.GetString(KeyCABundle),
		ProxyURL:    v.GetString(KeyProxy),
		AuthTimeout: v.GetDuration(KeyAuthTimeout),
		NoBrowser:   v.GetBool(KeyNoBrowser),
		Dedupe:      v.GetBool(KeyDedupe),
		AuthFile:    v.GetString(KeyFile),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks enumerated and numeric settings.
func (s *Settings) Validate() error {
	if !slices.Contains(factory.Kinds(), s.Store) {
		return fmt.Errorf("invalid store %q", s.Store)
	}
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative")
	}
	if s.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout must be positive")
	}
	if s.Scope == "" {
		return fmt.Errorf("scope cannot be empty")
	}
	if s.CABundle != "" {
		if err := ValidateCABundle(s.CABundle); err != nil {
			return fmt.Errorf("ca bundle: %w", err)
		}
	}
	return nil
}

// StoreConfig returns the credential store configuration.
func (s *Settings) StoreConfig() factory.Config {
	return factory.Config{
		Kind:        s.Store,
		Path:        s.StorePath,
		RedisAddr:   s.RedisAddr,
		RedisPrefix: s.RedisPrefix,
		RedisDB:     s.RedisDB,
	}
}

// HTTPClient builds the client used for token endpoints and sent requests.
func (s *Settings) HTTPClient() (*http.Client, error) {
	return networking.NewHttpClientBuilder().
		WithTimeout(s.HTTPTimeout).
		WithCABundle(s.CABundle).
		WithProxy(s.ProxyURL).
		Build()
}
