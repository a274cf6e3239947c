// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/reqauth/pkg/auth"
	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	"github.com/stacklok/reqauth/pkg/auth/oauth2/callback"
	"github.com/stacklok/reqauth/pkg/auth/types"
	"github.com/stacklok/reqauth/pkg/config"
	"github.com/stacklok/reqauth/pkg/logger"
	"github.com/stacklok/reqauth/pkg/storage"
	"github.com/stacklok/reqauth/pkg/storage/factory"
)

// engine wires settings to a store, token manager and auth builder.
type engine struct {
	settings *config.Settings
	store    storage.CredentialStore
	client   *http.Client
	manager  *oauth2.Manager
	builder  *auth.Builder
	// metrics is set only with --debug; its counters are logged on Close.
	metrics *prometheus.Registry
}

func newEngine(ctx context.Context, cmd *cobra.Command) (*engine, error) {
	configFile, _ := cmd.Flags().GetString(configFlag)
	settings, err := config.LoadSettings(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	store, err := factory.New(ctx, settings.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	client, err := settings.HTTPClient()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}

	authorizerOpts := []callback.Option{callback.WithTimeout(settings.AuthTimeout)}
	if settings.NoBrowser {
		authorizerOpts = append(authorizerOpts, callback.WithoutBrowser())
	}
	managerOpts := []oauth2.Option{
		oauth2.WithHTTPClient(client),
		oauth2.WithAuthorizer(callback.NewBrowserAuthorizer(authorizerOpts...)),
		oauth2.WithDeduplication(settings.Dedupe),
	}
	var registry *prometheus.Registry
	if settings.Debug {
		registry = prometheus.NewRegistry()
		metrics, err := oauth2.NewMetrics(registry)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to register token metrics: %w", err)
		}
		managerOpts = append(managerOpts, oauth2.WithMetrics(metrics))
	}
	manager := oauth2.NewManager(store, managerOpts...)

	logger.Debugw("engine ready", "store", settings.Store, "scope", settings.Scope)
	return &engine{
		settings: settings,
		store:    store,
		client:   client,
		manager:  manager,
		builder:  auth.NewDefaultBuilder(manager, settings.Scope),
		metrics:  registry,
	}, nil
}

func (e *engine) Close() {
	if e.metrics != nil {
		lines, err := counterLines(e.metrics)
		if err != nil {
			logger.Warnf("Failed to gather token metrics: %v", err)
		}
		for _, line := range lines {
			logger.Debugw("token metric", "counter", line)
		}
	}
	if err := e.store.Close(); err != nil {
		logger.Warnf("Failed to close credential store: %v", err)
	}
}

// namedRequest is a request loaded from the auth file with its effective
// auth resolved and prompted secrets filled in.
type namedRequest struct {
	file      *config.AuthFile
	request   *config.Request
	effective *types.AuthConfig
}

func (e *engine) loadRequest(name string) (*namedRequest, error) {
	file, err := config.LoadAuthFile(e.settings.AuthFile)
	if err != nil {
		return nil, err
	}
	req, err := file.Request(name)
	if err != nil {
		return nil, err
	}
	effective := file.EffectiveAuth(req)
	if err := config.ResolvePrompts(effective, config.TerminalPrompter(os.Stderr)); err != nil {
		return nil, err
	}
	return &namedRequest{file: file, request: req, effective: effective}, nil
}

// oauth2Config returns the effective OAuth2 config or an error naming the
// mode that applies instead.
func (r *namedRequest) oauth2Config(name string) (oauth2.Config, error) {
	if r.effective.EffectiveMode() != types.ModeOAuth2 || r.effective.OAuth2 == nil {
		return oauth2.Config{}, fmt.Errorf("request %q uses auth mode %q, not oauth2", name, r.effective.EffectiveMode())
	}
	return *r.effective.OAuth2, nil
}

// counterLines renders every counter in g as `name{label="v",...} value`,
// sorted.
func counterLines(g prometheus.Gatherer) ([]string, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g",
				family.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	return lines, nil
}
