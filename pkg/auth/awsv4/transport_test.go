// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package awsv4

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_SignsOutgoingRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Received-Authorization", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	signer, err := NewSigner("eu-west-1", "execute-api", WithClock(func() time.Time { return signingTime }))
	require.NoError(t, err)
	client := &http.Client{Transport: NewTransport(nil, signer, testCreds())}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/items", strings.NewReader("data"))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	echoed, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("X-Received-Authorization"), "/eu-west-1/execute-api/aws4_request")
	assert.Equal(t, "data", string(echoed))
	assert.Empty(t, req.Header.Get("Authorization"), "caller request must not be mutated")
}
