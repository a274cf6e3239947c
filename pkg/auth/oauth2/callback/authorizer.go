// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package callback implements an oauth2.Authorizer that opens the system
// browser and captures the redirect on a local HTTP listener.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/browser"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
	"github.com/stacklok/reqauth/pkg/networking"
)

const (
	defaultTimeout    = 5 * time.Minute
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second

	// fragmentParam marks a request relayed from the implicit grant page.
	fragmentParam = "_fragment"
)

// Opener opens url for the user.
type Opener func(url string) error

// Authorizer is a browser-driven oauth2.Authorizer. The callback URL must
// point at a loopback host; the listener binds its port for one attempt.
type Authorizer struct {
	open    Opener
	timeout time.Duration
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithOpener replaces the browser launcher.
func WithOpener(open Opener) Option {
	return func(a *Authorizer) { a.open = open }
}

// WithoutBrowser prints the authorize URL instead of opening it.
func WithoutBrowser() Option {
	return func(a *Authorizer) {
		a.open = func(u string) error {
			logger.Infof("Please open this URL in your browser: %s", u)
			return nil
		}
	}
}

// WithTimeout bounds how long to wait for the redirect.
func WithTimeout(d time.Duration) Option {
	return func(a *Authorizer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewBrowserAuthorizer creates a browser Authorizer.
func NewBrowserAuthorizer(opts ...Option) *Authorizer {
	a := &Authorizer{open: browser.OpenURL, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ oauth2.Authorizer = (*Authorizer)(nil)

type outcome struct {
	result *oauth2.AuthorizationResult
	err    error
}

// Authorize implements oauth2.Authorizer.
func (a *Authorizer) Authorize(ctx context.Context, req oauth2.AuthorizationRequest) (*oauth2.AuthorizationResult, error) {
	callbackURL, addr, err := listenAddress(req.CallbackURL)
	if err != nil {
		return nil, err
	}
	if len(req.Header) > 0 {
		logger.Warnw("authorization headers cannot be sent by the system browser and are ignored",
			"count", len(req.Header))
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, autherrors.NewConfigurationError(fmt.Sprintf("cannot listen on callback address %s", addr), err)
	}

	results := make(chan outcome, 1)
	h := &handler{req: req, results: results}

	r := chi.NewRouter()
	r.Get(callbackURL.Path, h.callback)
	if callbackURL.Path != "/" {
		r.Get("/", h.root)
	}

	server := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		logger.Infof("Starting OAuth callback server on %s", addr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.deliver(outcome{err: fmt.Errorf("callback server failed: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Failed to shutdown OAuth callback server: %v", err)
		}
	}()

	logger.Infof("Opening browser to: %s", req.AuthorizeURL)
	if err := a.open(req.AuthorizeURL); err != nil {
		logger.Warnf("Failed to open browser: %v", err)
		logger.Infof("Please manually open this URL in your browser: %s", req.AuthorizeURL)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	logger.Info("Waiting for OAuth callback...")
	select {
	case out := <-results:
		return out.result, out.err
	case <-ctx.Done():
		return nil, autherrors.NewAuthorizationError("OAuth flow cancelled", ctx.Err())
	}
}

// listenAddress derives the loopback listen address from the callback URL.
func listenAddress(raw string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return nil, "", autherrors.NewConfigurationError(
			fmt.Sprintf("callback URL %q must be an http URL", raw), err)
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, "", autherrors.NewConfigurationError(
			fmt.Sprintf("callback URL host %q is not a loopback address", host), nil)
	}
	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port == 0 {
			return nil, "", autherrors.NewConfigurationError(fmt.Sprintf("invalid callback port %q", p), err)
		}
	}
	if _, err := networking.FindOrUsePort(port); err != nil {
		return nil, "", autherrors.NewConfigurationError("callback port unavailable", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, net.JoinHostPort(host, strconv.Itoa(port)), nil
}
