// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package awsv4

import (
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/stacklok/reqauth/pkg/logger"
)

// Transport signs each request just before it is sent.
type Transport struct {
	base   http.RoundTripper
	signer *Signer
	creds  aws.Credentials
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, signer *Signer, creds aws.Credentials) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, signer: signer, creds: creds}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed := req.Clone(req.Context())
	if err := t.signer.SignRequest(req.Context(), signed, t.creds); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	logger.Debugw("signed request with aws sigv4", "service", t.signer.Service(), "region", t.signer.Region())
	return t.base.RoundTrip(signed)
}
