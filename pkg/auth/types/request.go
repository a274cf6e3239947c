// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/stacklok/reqauth/pkg/auth/awsv4"
	"github.com/stacklok/reqauth/pkg/auth/digest"
	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	"github.com/stacklok/reqauth/pkg/networking"
)

// QueryParam is a single query parameter.
type QueryParam struct {
	Key   string
	Value string
}

// AWSV4Signing carries what the signing transport needs.
type AWSV4Signing struct {
	Signer      *awsv4.Signer
	Credentials aws.Credentials
}

// PreparedRequest describes an outgoing request before it is materialized.
// Strategies set headers directly and record deferred work in the hook
// fields, which are consumed when the request is built and sent.
type PreparedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// APIKeyQuery is appended to the URL when the request is built.
	APIKeyQuery *QueryParam
	// Digest enables the digest challenge-response retry.
	Digest *digest.Credentials
	// AWSV4 enables SigV4 signing at send time.
	AWSV4 *AWSV4Signing
	// OAuth2 is the token resolution outcome, when oauth2 auth ran.
	OAuth2 *oauth2.TokenResult
}

// NewPreparedRequest returns a descriptor with an empty header set.
func NewPreparedRequest(method, rawURL string, body []byte) *PreparedRequest {
	if method == "" {
		method = http.MethodGet
	}
	return &PreparedRequest{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
		Body:   body,
	}
}

// Build materializes the request, applying the API key query parameter.
func (p *PreparedRequest) Build(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", p.URL, err)
	}
	if p.APIKeyQuery != nil && p.APIKeyQuery.Key != "" {
		networking.SetQueryParam(u, p.APIKeyQuery.Key, p.APIKeyQuery.Value)
	}

	var body io.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}
	req, err := http.NewRequestWithContext(ctx, p.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for name, values := range p.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req, nil
}
