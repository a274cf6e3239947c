// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"net/http"

	"github.com/stacklok/reqauth/pkg/auth/awsv4"
	"github.com/stacklok/reqauth/pkg/auth/digest"
	"github.com/stacklok/reqauth/pkg/auth/types"
)

// Transport wraps base with the interceptors prepared asks for. The digest
// retry sits closest to the network and the SigV4 signer outermost, so a
// request is signed once every header is final.
func Transport(base http.RoundTripper, prepared *types.PreparedRequest) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	if prepared.Digest != nil {
		rt = digest.NewTransport(rt, *prepared.Digest)
	}
	if prepared.AWSV4 != nil {
		rt = awsv4.NewTransport(rt, prepared.AWSV4.Signer, prepared.AWSV4.Credentials)
	}
	return rt
}

// Send builds prepared and sends it with client, through the interceptors
// the applied auth recorded. A nil client uses http.DefaultClient. The
// client itself is not modified.
func Send(ctx context.Context, client *http.Client, prepared *types.PreparedRequest) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := prepared.Build(ctx)
	if err != nil {
		return nil, err
	}
	c := *client
	c.Transport = Transport(client.Transport, prepared)
	return c.Do(req)
}
