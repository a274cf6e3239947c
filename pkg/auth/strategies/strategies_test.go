// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package strategies_test

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/reqauth/pkg/auth/awsv4"
	"github.com/stacklok/reqauth/pkg/auth/credentials"
	"github.com/stacklok/reqauth/pkg/auth/digest"
	"github.com/stacklok/reqauth/pkg/auth/oauth2"
	"github.com/stacklok/reqauth/pkg/auth/strategies"
	"github.com/stacklok/reqauth/pkg/auth/strategies/mocks"
	"github.com/stacklok/reqauth/pkg/auth/types"
	"github.com/stacklok/reqauth/pkg/auth/wsse"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
)

type strategy interface {
	Name() string
	Validate(*types.AuthConfig) error
	Apply(context.Context, *types.PreparedRequest, *types.AuthConfig) error
}

func newRequest() *types.PreparedRequest {
	return types.NewPreparedRequest(http.MethodGet, "https://api.example.com/items?page=1", nil)
}

func TestStrategies_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy strategy
		cfg      *types.AuthConfig
		check    func(t *testing.T, req *types.PreparedRequest)
	}{
		{
			name:     "none leaves request untouched",
			strategy: strategies.NewNoneStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeNone},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Empty(t, req.Header)
			},
		},
		{
			name:     "basic",
			strategy: strategies.NewBasicStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeBasic, Basic: &types.UserPassword{Username: "Aladdin", Password: "open sesame"}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Equal(t, "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==", req.Header.Get("Authorization"))
			},
		},
		{
			name:     "bearer",
			strategy: strategies.NewBearerStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeBearer, Bearer: &types.BearerConfig{Token: "abc"}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
			},
		},
		{
			name:     "bearer with empty token",
			strategy: strategies.NewBearerStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeBearer, Bearer: &types.BearerConfig{}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Equal(t, []string{"Bearer "}, req.Header.Values("Authorization"))
			},
		},
		{
			name:     "apikey header",
			strategy: strategies.NewAPIKeyStrategy(),
			cfg: &types.AuthConfig{Mode: types.ModeAPIKey, APIKey: &types.APIKeyConfig{
				Key: "X-Api-Key", Value: "k", Placement: types.APIKeyInHeader,
			}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Equal(t, "k", req.Header.Get("X-Api-Key"))
				assert.Nil(t, req.APIKeyQuery)
			},
		},
		{
			name:     "apikey query is deferred",
			strategy: strategies.NewAPIKeyStrategy(),
			cfg: &types.AuthConfig{Mode: types.ModeAPIKey, APIKey: &types.APIKeyConfig{
				Key: "api_key", Value: "k", Placement: types.APIKeyInQueryParams,
			}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Empty(t, req.Header)
				assert.Equal(t, &types.QueryParam{Key: "api_key", Value: "k"}, req.APIKeyQuery)
				assert.Equal(t, "https://api.example.com/items?page=1", req.URL)
			},
		},
		{
			name:     "digest arms the transport",
			strategy: strategies.NewDigestStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeDigest, Digest: &types.UserPassword{Username: "u", Password: "p"}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Equal(t, &digest.Credentials{Username: "u", Password: "p"}, req.Digest)
				assert.Empty(t, req.Header.Get("Authorization"))
			},
		},
		{
			name:     "wsse",
			strategy: strategies.NewWSSEStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeWSSE, WSSE: &types.UserPassword{Username: "bob", Password: "pw"}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				assert.Regexp(t, regexp.MustCompile(
					`^UsernameToken Username="bob", PasswordDigest="[A-Za-z0-9+/=]+", Nonce="[0-9a-f]{32}", Created="\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z"$`),
					req.Header.Get(wsse.HeaderName))
			},
		},
		{
			name: "awsv4 arms the signer",
			strategy: strategies.NewAWSV4Strategy(func(_ context.Context, cfg awsv4.Config) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: cfg.AccessKeyID, SecretAccessKey: "secret"}, nil
			}),
			cfg: &types.AuthConfig{Mode: types.ModeAWSV4, AWSV4: &awsv4.Config{
				AccessKeyID: "AKID", Service: "execute-api", Region: "us-east-1",
			}},
			check: func(t *testing.T, req *types.PreparedRequest) {
				t.Helper()
				require.NotNil(t, req.AWSV4)
				assert.Equal(t, "AKID", req.AWSV4.Credentials.AccessKeyID)
				assert.Equal(t, "us-east-1", req.AWSV4.Signer.Region())
				assert.Equal(t, "execute-api", req.AWSV4.Signer.Service())
				assert.Empty(t, req.Header.Get("Authorization"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, string(tt.cfg.Mode), tt.strategy.Name())
			req := newRequest()
			require.NoError(t, tt.strategy.Apply(context.Background(), req, tt.cfg))
			tt.check(t, req)
		})
	}
}

func TestStrategies_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy strategy
		cfg      *types.AuthConfig
	}{
		{name: "basic without block", strategy: strategies.NewBasicStrategy(), cfg: &types.AuthConfig{Mode: types.ModeBasic}},
		{name: "bearer without block", strategy: strategies.NewBearerStrategy(), cfg: &types.AuthConfig{Mode: types.ModeBearer}},
		{
			name:     "bearer with newline",
			strategy: strategies.NewBearerStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeBearer, Bearer: &types.BearerConfig{Token: "a\r\nX-Evil: 1"}},
		},
		{name: "digest without block", strategy: strategies.NewDigestStrategy(), cfg: &types.AuthConfig{Mode: types.ModeDigest}},
		{name: "wsse without block", strategy: strategies.NewWSSEStrategy(), cfg: &types.AuthConfig{Mode: types.ModeWSSE}},
		{name: "apikey without block", strategy: strategies.NewAPIKeyStrategy(), cfg: &types.AuthConfig{Mode: types.ModeAPIKey}},
		{
			name:     "apikey without key",
			strategy: strategies.NewAPIKeyStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeAPIKey, APIKey: &types.APIKeyConfig{Value: "v"}},
		},
		{
			name:     "apikey bad header name",
			strategy: strategies.NewAPIKeyStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeAPIKey, APIKey: &types.APIKeyConfig{Key: "X Key", Value: "v", Placement: types.APIKeyInHeader}},
		},
		{
			name:     "apikey unknown placement",
			strategy: strategies.NewAPIKeyStrategy(),
			cfg:      &types.AuthConfig{Mode: types.ModeAPIKey, APIKey: &types.APIKeyConfig{Key: "k", Placement: "cookie"}},
		},
		{name: "awsv4 without block", strategy: strategies.NewAWSV4Strategy(nil), cfg: &types.AuthConfig{Mode: types.ModeAWSV4}},
		{
			name:     "awsv4 without region",
			strategy: strategies.NewAWSV4Strategy(nil),
			cfg:      &types.AuthConfig{Mode: types.ModeAWSV4, AWSV4: &awsv4.Config{Service: "s3"}},
		},
		{name: "oauth2 without block", strategy: strategies.NewOAuth2Strategy(nil, ""), cfg: &types.AuthConfig{Mode: types.ModeOAuth2}},
		{
			name:     "oauth2 invalid config",
			strategy: strategies.NewOAuth2Strategy(nil, ""),
			cfg:      &types.AuthConfig{Mode: types.ModeOAuth2, OAuth2: &oauth2.Config{GrantType: oauth2.GrantClientCredentials}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.strategy.Validate(tt.cfg)
			require.Error(t, err)
			assert.True(t, autherrors.IsConfigurationError(err), err)

			req := newRequest()
			require.Error(t, tt.strategy.Apply(context.Background(), req, tt.cfg))
			assert.Empty(t, req.Header)
		})
	}
}

func TestAWSV4Strategy_ResolverError(t *testing.T) {
	t.Parallel()

	boom := autherrors.NewConfigurationError("no credentials", nil)
	s := strategies.NewAWSV4Strategy(func(context.Context, awsv4.Config) (aws.Credentials, error) {
		return aws.Credentials{}, boom
	})
	req := newRequest()
	err := s.Apply(context.Background(), req, &types.AuthConfig{
		Mode: types.ModeAWSV4, AWSV4: &awsv4.Config{Service: "s3", Region: "us-east-1"},
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, req.AWSV4)
}

func oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		GrantType:      oauth2.GrantClientCredentials,
		AccessTokenURL: "https://idp.example.com/token",
		ClientID:       "client",
		AutoFetchToken: true,
	}
}

func tokenResult(token string, source oauth2.Source) *oauth2.TokenResult {
	res := &oauth2.TokenResult{Source: source}
	if token != "" {
		res.Credential = &credentials.Credential{AccessToken: token, TokenType: "Bearer"}
	}
	return res
}

func TestOAuth2Strategy_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     func() *oauth2.Config
		result  *oauth2.TokenResult
		wantURL string
		wantHdr string
	}{
		{
			name:    "header placement",
			cfg:     oauth2Config,
			result:  tokenResult("tok", oauth2.SourceFetched),
			wantURL: "https://api.example.com/items?page=1",
			wantHdr: "Bearer tok",
		},
		{
			name: "custom prefix",
			cfg: func() *oauth2.Config {
				c := oauth2Config()
				prefix := "Token"
				c.TokenHeaderPrefix = &prefix
				return c
			},
			result:  tokenResult("tok", oauth2.SourceCache),
			wantURL: "https://api.example.com/items?page=1",
			wantHdr: "Token tok",
		},
		{
			name: "url placement",
			cfg: func() *oauth2.Config {
				c := oauth2Config()
				c.TokenPlacement = oauth2.TokenInURL
				return c
			},
			result:  tokenResult("tok", oauth2.SourceCache),
			wantURL: "https://api.example.com/items?page=1&access_token=tok",
		},
		{
			name: "no token proceeds unauthenticated",
			cfg: func() *oauth2.Config {
				c := oauth2Config()
				c.AutoFetchToken = false
				return c
			},
			result:  tokenResult("", oauth2.SourceNone),
			wantURL: "https://api.example.com/items?page=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			provider := mocks.NewMockTokenProvider(ctrl)
			cfg := tt.cfg()
			provider.EXPECT().Token(gomock.Any(), *cfg, "scope-1").Return(tt.result, nil)

			s := strategies.NewOAuth2Strategy(provider, "scope-1")
			req := newRequest()
			require.NoError(t, s.Apply(context.Background(), req, &types.AuthConfig{Mode: types.ModeOAuth2, OAuth2: cfg}))

			assert.Equal(t, tt.wantURL, req.URL)
			assert.Equal(t, tt.wantHdr, req.Header.Get("Authorization"))
			assert.Same(t, tt.result, req.OAuth2)
		})
	}
}

func TestOAuth2Strategy_ProviderError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	provider := mocks.NewMockTokenProvider(ctrl)
	endpointErr := autherrors.NewTokenEndpointError("token endpoint returned 500", nil)
	provider.EXPECT().Token(gomock.Any(), gomock.Any(), "").Return(nil, endpointErr)

	s := strategies.NewOAuth2Strategy(provider, "")
	req := newRequest()
	err := s.Apply(context.Background(), req, &types.AuthConfig{Mode: types.ModeOAuth2, OAuth2: oauth2Config()})
	require.Error(t, err)
	assert.True(t, autherrors.IsTokenEndpointError(err))
	assert.True(t, errors.Is(err, endpointErr))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestWSSEStrategy_FreshPerRequest(t *testing.T) {
	t.Parallel()

	s := strategies.NewWSSEStrategy()
	cfg := &types.AuthConfig{Mode: types.ModeWSSE, WSSE: &types.UserPassword{Username: "u", Password: "p"}}

	first, second := newRequest(), newRequest()
	require.NoError(t, s.Apply(context.Background(), first, cfg))
	require.NoError(t, s.Apply(context.Background(), second, cfg))
	assert.NotEqual(t, first.Header.Get(wsse.HeaderName), second.Header.Get(wsse.HeaderName))
}
