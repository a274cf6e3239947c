// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/networking"
)

type redirectResponse struct {
	status int
	body   string
}

// redirectTo returns an opener that simulates the provider redirecting the
// browser to callbackURL+suffix. The callback response is sent on the
// returned channel.
func redirectTo(t *testing.T, callbackURL, suffix string, openErr error) (Opener, <-chan redirectResponse) {
	t.Helper()
	responses := make(chan redirectResponse, 1)
	return func(string) error {
		go func() {
			resp, err := http.Get(callbackURL + suffix) // #nosec G107 - test server URL
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			responses <- redirectResponse{status: resp.StatusCode, body: string(body)}
		}()
		return openErr
	}, responses
}

func callbackURL(t *testing.T) string {
	t.Helper()
	port := networking.FindAvailable()
	require.NotZero(t, port)
	return fmt.Sprintf("http://127.0.0.1:%d/callback", port)
}

func TestAuthorizer_AuthorizationCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		state      string
		suffix     string
		openErr    error
		wantCode   string
		wantStatus int
		checkErr   func(t *testing.T, err error)
	}{
		{
			name:       "code with matching state",
			state:      "xyz",
			suffix:     "?code=abc&state=xyz",
			wantCode:   "abc",
			wantStatus: http.StatusOK,
		},
		{
			name:       "no state configured",
			suffix:     "?code=abc",
			wantCode:   "abc",
			wantStatus: http.StatusOK,
		},
		{
			name:       "browser failure is not fatal",
			suffix:     "?code=abc",
			openErr:    errors.New("no display"),
			wantCode:   "abc",
			wantStatus: http.StatusOK,
		},
		{
			name:       "state mismatch",
			state:      "xyz",
			suffix:     "?code=abc&state=other",
			wantStatus: http.StatusBadRequest,
			checkErr: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, autherrors.IsAuthorizationError(err))
				assert.Contains(t, err.Error(), "invalid state")
			},
		},
		{
			name:       "provider error",
			state:      "xyz",
			suffix:     "?error=access_denied&error_description=user+said+no",
			wantStatus: http.StatusBadRequest,
			checkErr: func(t *testing.T, err error) {
				t.Helper()
				var authErr *oauth2.AuthorizationError
				require.True(t, errors.As(err, &authErr))
				assert.Equal(t, "access_denied", authErr.Code)
				assert.Equal(t, "user said no", authErr.Description)
			},
		},
		{
			name:       "missing code",
			suffix:     "?state=",
			wantStatus: http.StatusBadRequest,
			checkErr: func(t *testing.T, err error) {
				t.Helper()
				assert.Contains(t, err.Error(), "missing authorization code")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cb := callbackURL(t)
			open, responses := redirectTo(t, cb, tt.suffix, tt.openErr)
			a := NewBrowserAuthorizer(WithOpener(open), WithTimeout(10*time.Second))

			result, err := a.Authorize(t.Context(), oauth2.AuthorizationRequest{
				GrantType:    oauth2.GrantAuthorizationCode,
				AuthorizeURL: "https://auth.example.com/authorize",
				CallbackURL:  cb,
				ResponseType: "code",
				State:        tt.state,
			})

			resp := <-responses
			assert.Equal(t, tt.wantStatus, resp.status)

			if tt.checkErr != nil {
				require.Error(t, err)
				tt.checkErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Contains(t, resp.body, "Authentication Successful")
		})
	}
}

func TestAuthorizer_ImplicitRelaysFragment(t *testing.T) {
	t.Parallel()

	cb := callbackURL(t)
	relayed := make(chan string, 1)
	open := func(string) error {
		go func() {
			// The browser first lands on the bare callback with the fragment.
			resp, err := http.Get(cb)
			if !assert.NoError(t, err) {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			relayed <- string(body)

			resp, err = http.Get(cb + "?access_token=tok&token_type=bearer&expires_in=3600&state=s1&" + fragmentParam + "=1")
			if assert.NoError(t, err) {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}

	result, err := NewBrowserAuthorizer(WithOpener(open)).Authorize(t.Context(), oauth2.AuthorizationRequest{
		GrantType:    oauth2.GrantImplicit,
		AuthorizeURL: "https://auth.example.com/authorize",
		CallbackURL:  cb,
		ResponseType: "token",
		State:        "s1",
	})
	require.NoError(t, err)
	assert.Contains(t, <-relayed, "window.location.hash")

	require.NotNil(t, result.Implicit)
	assert.Equal(t, "tok", result.Implicit.AccessToken)
	assert.Equal(t, "bearer", result.Implicit.TokenType)
	assert.Equal(t, "3600", result.Implicit.ExpiresIn)
	assert.Equal(t, "s1", result.Implicit.State)
}

func TestAuthorizer_Timeout(t *testing.T) {
	t.Parallel()

	a := NewBrowserAuthorizer(WithOpener(func(string) error { return nil }), WithTimeout(50*time.Millisecond))
	_, err := a.Authorize(t.Context(), oauth2.AuthorizationRequest{
		GrantType:    oauth2.GrantAuthorizationCode,
		AuthorizeURL: "https://auth.example.com/authorize",
		CallbackURL:  callbackURL(t),
		ResponseType: "code",
	})
	require.Error(t, err)
	assert.True(t, autherrors.IsAuthorizationError(err))
}

func TestListenAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{name: "localhost without path", url: "http://localhost:18181", wantAddr: "localhost:18181", wantPath: "/"},
		{name: "ipv6 loopback", url: "http://[::1]:18182/cb", wantAddr: "[::1]:18182", wantPath: "/cb"},
		{name: "https is rejected", url: "https://localhost:18183/cb", wantErr: true},
		{name: "remote host is rejected", url: "http://example.com:18184/cb", wantErr: true},
		{name: "port zero is rejected", url: "http://127.0.0.1:0/cb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, addr, err := listenAddress(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, autherrors.IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantPath, u.Path)
		})
	}
}
