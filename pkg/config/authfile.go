// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/reqauth/pkg/auth/types"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

// AuthFile is a collection of named requests sharing a collection-level
// auth config.
//
//	collection:
//	  mode: oauth2
//	  oauth2: {grantType: client_credentials, accessTokenUrl: ..., clientId: ...}
//	requests:
//	  list-items:
//	    method: GET
//	    url: https://api.example.com/items
//	    auth: {mode: inherit}
type AuthFile struct {
	Collection *types.AuthConfig   `yaml:"collection,omitempty"`
	Requests   map[string]*Request `yaml:"requests"`
}

// Request is a named request in an auth file.
type Request struct {
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
	Auth    *types.AuthConfig `yaml:"auth,omitempty"`
}

// LoadAuthFile reads and parses the auth file at path. Files ending in
// .toml are parsed as TOML, everything else as YAML.
func LoadAuthFile(path string) (*AuthFile, error) {
	// #nosec G304 - path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth file %s: %w", path, err)
	}
	parse := ParseAuthFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = ParseTOMLAuthFile
	}
	f, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseAuthFile parses an auth file. Unknown fields and unknown auth modes
// are rejected.
func ParseAuthFile(data []byte) (*AuthFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f AuthFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, autherrors.NewConfigurationError("invalid auth file", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseTOMLAuthFile parses an auth file written in TOML. Keys follow the
// same names as the YAML form.
func ParseTOMLAuthFile(data []byte) (*AuthFile, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, autherrors.NewConfigurationError("invalid auth file", err)
	}
	if len(doc) == 0 {
		return ParseAuthFile(nil)
	}
	normalized, err := yaml.Marshal(doc)
	if err != nil {
		return nil, autherrors.NewConfigurationError("invalid auth file", err)
	}
	return ParseAuthFile(normalized)
}

// Validate checks modes and required request fields.
func (f *AuthFile) Validate() error {
	if f.Collection != nil {
		if err := validateMode(f.Collection); err != nil {
			return autherrors.NewConfigurationError("collection auth", err)
		}
		if f.Collection.Mode == types.ModeInherit {
			return autherrors.NewConfigurationError("collection auth cannot use mode inherit", nil)
		}
	}
	for _, name := range f.RequestNames() {
		r := f.Requests[name]
		if r == nil {
			return autherrors.NewConfigurationError(fmt.Sprintf("request %q is empty", name), nil)
		}
		if r.URL == "" {
			return autherrors.NewConfigurationError(fmt.Sprintf("request %q has no url", name), nil)
		}
		if r.Auth != nil {
			if err := validateMode(r.Auth); err != nil {
				return autherrors.NewConfigurationError(fmt.Sprintf("request %q auth", name), err)
			}
		}
	}
	return nil
}

func validateMode(cfg *types.AuthConfig) error {
	if cfg.Mode == "" || cfg.Mode.Valid() {
		return nil
	}
	return fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// RequestNames returns the request names in sorted order.
func (f *AuthFile) RequestNames() []string {
	return slices.Sorted(maps.Keys(f.Requests))
}

// Request returns the named request.
func (f *AuthFile) Request(name string) (*Request, error) {
	r, ok := f.Requests[name]
	if !ok || r == nil {
		return nil, fmt.Errorf("request %q not found in auth file", name)
	}
	return r, nil
}

// EffectiveAuth returns the auth config that applies to r, resolving inherit.
func (f *AuthFile) EffectiveAuth(r *Request) *types.AuthConfig {
	return r.Auth.Resolve(f.Collection)
}

// Prepare converts r into an outgoing request descriptor.
func (r *Request) Prepare() *types.PreparedRequest {
	var body []byte
	if r.Body != "" {
		body = []byte(r.Body)
	}
	p := types.NewPreparedRequest(r.Method, r.URL, body)
	for k, v := range r.Headers {
		p.Header.Set(k, v)
	}
	return p
}
