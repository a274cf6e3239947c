// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/networking"
	"github.com/stacklok/reqauth/pkg/validation"
)

// TokenRequest is a token endpoint request before it is put on the wire.
type TokenRequest struct {
	Method string
	URL    string
	Header http.Header
	Form   url.Values
}

func newTokenRequest(endpoint string, form url.Values) *TokenRequest {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")
	return &TokenRequest{Method: http.MethodPost, URL: endpoint, Header: header, Form: form}
}

// placeClientCredentials puts the client id and secret where cfg says.
// An empty secret is never sent in the body, but still forms "id:" in the
// Basic header.
func (r *TokenRequest) placeClientCredentials(cfg Config) {
	if cfg.CredentialsPlacement == CredentialsInBasicAuthHeader {
		raw := cfg.ClientID + ":" + cfg.ClientSecret
		r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
		return
	}
	if cfg.ClientID != "" {
		r.Form.Set("client_id", cfg.ClientID)
	}
	if cfg.ClientSecret != "" {
		r.Form.Set("client_secret", cfg.ClientSecret)
	}
}

// Encode builds the HTTP request.
func (r *TokenRequest) Encode(ctx context.Context) (*http.Request, error) {
	encoded := r.Form.Encode()
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	for name, values := range r.Header {
		req.Header[name] = append([]string(nil), values...)
	}
	req.Header.Set("Content-Length", strconv.Itoa(len(encoded)))
	return req, nil
}

// String implements fmt.Stringer, redacting credentials.
func (r TokenRequest) String() string {
	return fmt.Sprintf("TokenRequest{Method: %s, URL: %s, Header: %v, Form: %v}",
		r.Method, r.URL, redactHeader(r.Header), redactForm(r.Form))
}

// ApplyAdditionalParameters injects the enabled params into req. Header
// entries are set verbatim, query entries are appended to the URL and body
// entries override or extend the form.
func ApplyAdditionalParameters(req *TokenRequest, params []AdditionalParameter) error {
	for _, p := range params {
		if !p.Enabled || p.Name == "" {
			continue
		}
		switch p.SendIn {
		case SendInHeaders:
			if err := validateHeaderParam(p); err != nil {
				return err
			}
			req.Header.Set(p.Name, p.Value)
		case SendInQueryParams:
			u, err := url.Parse(req.URL)
			if err != nil || !u.IsAbs() {
				return autherrors.NewConfigurationError(
					fmt.Sprintf("cannot add query parameter %q to invalid URL %q", p.Name, req.URL), err)
			}
			networking.AddQueryParam(u, p.Name, p.Value)
			req.URL = u.String()
		case SendInBody:
			req.Form.Set(p.Name, p.Value)
		}
	}
	return nil
}

// authorizationParams splits authorization-phase params into query entries
// for the authorize URL and headers for the authorizer.
func authorizationParams(params []AdditionalParameter) (url.Values, http.Header, error) {
	query := url.Values{}
	header := http.Header{}
	for _, p := range params {
		if !p.Enabled || p.Name == "" {
			continue
		}
		switch p.SendIn {
		case SendInQueryParams:
			query.Add(p.Name, p.Value)
		case SendInHeaders:
			if err := validateHeaderParam(p); err != nil {
				return nil, nil, err
			}
			header.Set(p.Name, p.Value)
		}
	}
	return query, header, nil
}

func validateHeaderParam(p AdditionalParameter) error {
	if err := validation.ValidateHTTPHeaderName(p.Name); err != nil {
		return autherrors.NewConfigurationError(fmt.Sprintf("invalid additional header %q", p.Name), err)
	}
	if err := validation.ValidateHTTPHeaderValue(p.Value); err != nil {
		return autherrors.NewConfigurationError(fmt.Sprintf("invalid value for additional header %q", p.Name), err)
	}
	return nil
}

var sensitiveFormFields = map[string]bool{
	"client_secret": true,
	"password":      true,
	"refresh_token": true,
	"code":          true,
	"code_verifier": true,
}

func redactForm(form url.Values) url.Values {
	out := make(url.Values, len(form))
	for k, v := range form {
		if sensitiveFormFields[k] {
			out[k] = []string{redactedPlaceholder}
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

func redactHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	if out.Get("Authorization") != "" {
		out.Set("Authorization", redactedPlaceholder)
	}
	return out
}
