// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/reqauth/pkg/logger"
)

type retriedKey struct{}

// withRetried marks ctx as carrying an already-authenticated digest replay.
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// Transport answers a Digest challenge by replaying the request once with
// an Authorization header. A 401 on the replay is returned to the caller.
type Transport struct {
	base   http.RoundTripper
	creds  Credentials
	cnonce func() string
}

// Option configures a Transport.
type Option func(*Transport)

// WithCnonceGenerator overrides client nonce generation.
func WithCnonceGenerator(gen func() string) Option {
	return func(t *Transport) {
		if gen != nil {
			t.cnonce = gen
		}
	}
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, creds Credentials, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{base: base, creds: creds, cnonce: newCnonce}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func newCnonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isRetried(req.Context()) || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	first, getBody, err := replayable(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	header, ok := digestChallenge(resp.Header)
	if !ok {
		return resp, nil
	}
	ch, err := ParseChallenge(header)
	if err != nil {
		logger.Warnw("digest challenge rejected", "url", req.URL.Redacted(), "error", err)
		return resp, nil
	}

	retry := req.Clone(withRetried(req.Context()))
	if getBody != nil {
		if retry.Body, err = getBody(); err != nil {
			return resp, nil
		}
		retry.GetBody = getBody
	}
	retry.Header.Set("Authorization", Authorization(req.Method, req.URL, ch, t.creds, t.cnonce()))

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	logger.Debugw("retrying request with digest authorization", "url", req.URL.Redacted(), "realm", ch.Realm)
	return t.base.RoundTrip(retry)
}

func digestChallenge(h http.Header) (string, bool) {
	for _, v := range h.Values("WWW-Authenticate") {
		if IsDigestChallenge(strings.TrimSpace(v)) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// replayable returns the request to send first and a body factory for the
// replay. A body without GetBody is buffered, consuming the caller's body.
func replayable(req *http.Request) (*http.Request, func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil, nil
	}
	if req.GetBody != nil {
		return req, req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to buffer request body for digest retry: %w", err)
	}
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	first := req.Clone(req.Context())
	first.Body, _ = getBody()
	first.GetBody = getBody
	return first, getBody, nil
}
