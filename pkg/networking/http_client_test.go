// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"crypto/tls"
	"encoding/pem"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHttpClientBuilder(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()

	assert.Equal(t, HttpTimeout, builder.clientTimeout)
	assert.Equal(t, 10*time.Second, builder.tlsHandshakeTimeout)
	assert.Equal(t, 10*time.Second, builder.responseHeaderTimeout)
	assert.Empty(t, builder.caCertPath)
	assert.True(t, builder.allowPrivate)
	assert.False(t, builder.httpsOnly)
}

func TestHttpClientBuilder_Fluent(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()
	assert.Same(t, builder, builder.WithCABundle("/ca.crt"))
	assert.Same(t, builder, builder.WithProxy("http://proxy:3128"))
	assert.Same(t, builder, builder.WithInsecureSkipVerify(true))
	assert.Same(t, builder, builder.WithHTTPSOnly(true))
	assert.Same(t, builder, builder.WithPrivateIPs(false))
	assert.Same(t, builder, builder.WithTimeout(5*time.Second))

	assert.Equal(t, "/ca.crt", builder.caCertPath)
	assert.Equal(t, "http://proxy:3128", builder.proxyURL)
	assert.True(t, builder.insecureSkipVerify)
	assert.True(t, builder.httpsOnly)
	assert.False(t, builder.allowPrivate)
	assert.Equal(t, 5*time.Second, builder.clientTimeout)

	builder.WithTimeout(0)
	assert.Equal(t, 5*time.Second, builder.clientTimeout, "non-positive timeout is ignored")
}

func writeServerCA(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.crt")
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(path, block, 0600))
	return path
}

func TestHttpClientBuilder_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupBuilder   func(t *testing.T) *HttpClientBuilder
		errorContains  string
		validateClient func(t *testing.T, client *http.Client)
	}{
		{
			name:         "basic client without options",
			setupBuilder: func(*testing.T) *HttpClientBuilder { return NewHttpClientBuilder() },
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.Equal(t, HttpTimeout, client.Timeout)
				httpTransport := client.Transport.(*http.Transport)
				assert.Nil(t, httpTransport.DialContext)
				assert.Nil(t, httpTransport.TLSClientConfig)
			},
		},
		{
			name: "https only wraps the transport",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithHTTPSOnly(true)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.IsType(t, &ValidatingTransport{}, client.Transport)
			},
		},
		{
			name: "private IPs disallowed installs dialer control",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithPrivateIPs(false)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				assert.NotNil(t, client.Transport.(*http.Transport).DialContext)
			},
		},
		{
			name: "insecure skip verify",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithInsecureSkipVerify(true)
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				cfg := client.Transport.(*http.Transport).TLSClientConfig
				require.NotNil(t, cfg)
				assert.True(t, cfg.InsecureSkipVerify)
				assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
			},
		},
		{
			name: "fixed proxy",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithProxy("http://proxy.internal:3128")
			},
			validateClient: func(t *testing.T, client *http.Client) {
				t.Helper()
				req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)
				proxy, err := client.Transport.(*http.Transport).Proxy(req)
				require.NoError(t, err)
				assert.Equal(t, "proxy.internal:3128", proxy.Host)
			},
		},
		{
			name: "invalid proxy",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithProxy("::nope")
			},
			errorContains: "invalid proxy URL",
		},
		{
			name: "invalid CA certificate file",
			setupBuilder: func(t *testing.T) *HttpClientBuilder {
				t.Helper()
				path := filepath.Join(t.TempDir(), "invalid-ca.crt")
				require.NoError(t, os.WriteFile(path, []byte("invalid cert data"), 0600))
				return NewHttpClientBuilder().WithCABundle(path)
			},
			errorContains: "failed to parse CA certificate bundle",
		},
		{
			name: "missing CA certificate file",
			setupBuilder: func(*testing.T) *HttpClientBuilder {
				return NewHttpClientBuilder().WithCABundle("/nonexistent/ca.crt")
			},
			errorContains: "failed to read CA certificate bundle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := tt.setupBuilder(t).Build()
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			tt.validateClient(t, client)
		})
	}
}

func TestHttpClientBuilder_CABundleTrustsServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	untrusted, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)
	_, err = untrusted.Get(srv.URL)
	require.Error(t, err)

	trusted, err := NewHttpClientBuilder().WithCABundle(writeServerCA(t, srv)).Build()
	require.NoError(t, err)
	resp, err := trusted.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestValidatingTransport_RoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	transport := &ValidatingTransport{Transport: http.DefaultTransport}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not HTTPS scheme")
}

func TestIsPrivateIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.10", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.private, IsPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestAddressReferencesPrivateIp(t *testing.T) {
	t.Parallel()

	assert.Error(t, AddressReferencesPrivateIp("127.0.0.1:80"))
	assert.Error(t, AddressReferencesPrivateIp("missing-port"))
}
