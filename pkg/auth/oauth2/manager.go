// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
	"github.com/stacklok/reqauth/pkg/storage"
)

// Source says where a TokenResult came from.
type Source string

// Token sources.
const (
	// SourceCache is a valid cached credential; no request was made.
	SourceCache Source = "cache"
	// SourceRefreshed is a credential obtained with a refresh token.
	SourceRefreshed Source = "refreshed"
	// SourceFetched is a credential obtained by running the grant.
	SourceFetched Source = "fetched"
	// SourceStale is an expired cached credential returned by policy.
	SourceStale Source = "stale"
	// SourceNone means no credential is available and fetching is disabled.
	SourceNone Source = "none"
)

// TokenResult is the outcome of Manager.Token. Credential is nil for SourceNone.
type TokenResult struct {
	Credential *credentials.Credential
	Key        credentials.Key
	Source     Source
	// Exchanges lists the token endpoint round trips made for this call.
	Exchanges []Exchange
}

// AccessToken returns the access token, or "" when there is none.
func (r *TokenResult) AccessToken() string {
	if r == nil || r.Credential == nil {
		return ""
	}
	return r.Credential.AccessToken
}

// Manager obtains OAuth2 tokens, consulting and maintaining a credential store.
type Manager struct {
	store       storage.CredentialStore
	endpoint    *tokenEndpoint
	authorizer  Authorizer
	now         func() time.Time
	newVerifier func() string
	dedupe      bool
	group       singleflight.Group
	metrics     *Metrics
	tracer      trace.Tracer
}

const tracerName = "github.com/stacklok/reqauth/pkg/auth/oauth2"

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for token endpoint requests.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.endpoint.client = client
		}
	}
}

// WithAuthorizer sets the interactive authorizer for authorization_code and implicit grants.
func WithAuthorizer(a Authorizer) Option {
	return func(m *Manager) { m.authorizer = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
			m.endpoint.now = now
		}
	}
}

// WithDeduplication collapses concurrent fetches and refreshes for the same
// key into one request. Off by default: concurrent callers racing on a
// missing or expired token each fetch, and the last write wins.
func WithDeduplication(enabled bool) Option {
	return func(m *Manager) { m.dedupe = enabled }
}

// WithMetrics records counters on m.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithTracerProvider sets the provider used for token resolution spans.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// withVerifierGenerator overrides PKCE verifier generation in tests.
func withVerifierGenerator(gen func() string) Option {
	return func(m *Manager) { m.newVerifier = gen }
}

// NewManager creates a Manager over store. A nil store disables caching.
func NewManager(store storage.CredentialStore, opts ...Option) *Manager {
	if store == nil {
		store = &storage.NoopCredentialStore{}
	}
	m := &Manager{
		store:       store,
		endpoint:    &tokenEndpoint{client: defaultHTTPClient, now: time.Now},
		now:         time.Now,
		newVerifier: newVerifier,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the manager's credential store.
func (m *Manager) Store() storage.CredentialStore {
	return m.store
}

// TokenOption adjusts one Token call.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	forceFetch bool
}

// WithForceFetch skips the cache and always runs the grant.
func WithForceFetch() TokenOption {
	return func(o *tokenOptions) { o.forceFetch = true }
}

// CacheKey returns the store key for cfg within scopeID.
func CacheKey(cfg Config, scopeID string) credentials.Key {
	strategy, ok := grantStrategies[cfg.GrantType]
	if !ok {
		return credentials.NewKey(scopeID, cfg.AccessTokenURL, cfg.CredentialsID)
	}
	return credentials.NewKey(scopeID, strategy.cacheURL(cfg), cfg.CredentialsID)
}

// GetToken returns a usable access token for cfg, or "" when none is
// cached and autoFetchToken is off.
func (m *Manager) GetToken(ctx context.Context, cfg Config, scopeID string) (string, error) {
	res, err := m.Token(ctx, cfg, scopeID)
	if err != nil {
		return "", err
	}
	return res.AccessToken(), nil
}

// Token resolves a credential for cfg:
//
//   - a valid cached credential is returned without a network call;
//   - an expired one is refreshed when autoRefreshToken is set and a refresh
//     token exists, and on failure it is cleared;
//   - expired credentials are otherwise cleared and refetched when
//     autoFetchToken is set, or returned as stale;
//   - with nothing cached and autoFetchToken off, the result is SourceNone.
func (m *Manager) Token(ctx context.Context, cfg Config, scopeID string, opts ...TokenOption) (*TokenResult, error) {
	ctx, span := m.tracer.Start(ctx, "oauth2.Token",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oauth2.grant_type", string(cfg.GrantType)),
			attribute.String("oauth2.scope_id", scopeID),
		),
	)
	defer span.End()

	res, err := m.token(ctx, cfg, scopeID, opts...)
	if res != nil {
		span.SetAttributes(
			attribute.String("oauth2.token_source", string(res.Source)),
			attribute.Int("oauth2.exchanges", len(res.Exchanges)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (m *Manager) token(ctx context.Context, cfg Config, scopeID string, opts ...TokenOption) (*TokenResult, error) {
	var o tokenOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy := grantStrategies[cfg.GrantType]
	key := CacheKey(cfg, scopeID)
	res := &TokenResult{Key: key}

	if !o.forceFetch {
		cached := m.lookup(ctx, key)
		switch {
		case cached != nil && !credentials.IsExpired(cached, m.now()):
			logger.Debugw("oauth2 cache hit", "url", key.URL, "credentials_id", key.CredentialsID)
			m.metrics.cacheHit(cfg.GrantType)
			res.Credential, res.Source = cached, SourceCache
			return res, nil

		case cached != nil:
			logger.Debugw("cached oauth2 token expired", "url", key.URL, "credentials_id", key.CredentialsID)
			if strategy.refreshable && cfg.AutoRefreshToken && cached.RefreshToken != "" {
				cred, err := m.refresh(ctx, cfg, key, cached.RefreshToken, res)
				if err == nil {
					res.Credential, res.Source = cred, SourceRefreshed
					return res, nil
				}
				logger.Warnw("oauth2 token refresh failed", "url", refreshURL(cfg), "error", err)
				m.clear(ctx, key)
				if !cfg.AutoFetchToken {
					res.Credential, res.Source = cached, SourceStale
					return res, nil
				}
			} else if cfg.AutoFetchToken {
				m.clear(ctx, key)
			} else {
				res.Credential, res.Source = cached, SourceStale
				return res, nil
			}

		case !cfg.AutoFetchToken:
			logger.Debugw("no cached oauth2 token and auto fetch disabled", "url", key.URL)
			res.Source = SourceNone
			return res, nil
		}
	}

	cred, err := m.fetch(ctx, cfg, key, strategy, res)
	m.metrics.fetched(cfg.GrantType, err)
	if err != nil {
		return res, err
	}
	res.Credential, res.Source = cred, SourceFetched
	return res, nil
}

// ClearToken removes the cached credential for cfg.
func (m *Manager) ClearToken(ctx context.Context, cfg Config, scopeID string) error {
	key := CacheKey(cfg, scopeID)
	if err := m.store.Delete(ctx, key); err != nil {
		return autherrors.NewStorePersistenceError("clearing cached credential", err)
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, key credentials.Key) *credentials.Credential {
	cred, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warnw("failed to read cached credential", "url", key.URL, "error", err)
		}
		return nil
	}
	return cred
}

func (m *Manager) clear(ctx context.Context, key credentials.Key) {
	if err := m.store.Delete(ctx, key); err != nil {
		logger.Warnw("failed to clear cached credential", "url", key.URL, "error", err)
	}
}

// persist saves cred. Failures are logged; the token is still usable.
func (m *Manager) persist(ctx context.Context, key credentials.Key, cred *credentials.Credential) {
	if err := m.store.Save(ctx, key, cred); err != nil {
		logger.Warnw("failed to cache oauth2 credential", "url", key.URL, "credentials_id", key.CredentialsID,
			"error", autherrors.NewStorePersistenceError("saving credential", err))
	}
}

// flightResult is what a deduplicated call hands to every waiter.
type flightResult struct {
	cred      *credentials.Credential
	exchanges []Exchange
}

// once runs fn, collapsing concurrent calls for the same flight key when
// deduplication is on.
func (m *Manager) once(flight string, fn func() (*flightResult, error)) (*flightResult, error) {
	if !m.dedupe {
		return fn()
	}
	v, err, shared := m.group.Do(flight, func() (any, error) { return fn() })
	if shared {
		logger.Debugw("joined in-flight oauth2 request", "flight", flight)
	}
	fr, _ := v.(*flightResult)
	if fr == nil {
		return nil, err
	}
	return &flightResult{cred: fr.cred.Clone(), exchanges: fr.exchanges}, err
}

func (m *Manager) refresh(
	ctx context.Context, cfg Config, key credentials.Key, refreshToken string, res *TokenResult,
) (*credentials.Credential, error) {
	fr, err := m.once("refresh|"+key.String(), func() (*flightResult, error) {
		req := refreshRequest(cfg, refreshToken)
		if err := ApplyAdditionalParameters(req, cfg.AdditionalParameters.Refresh); err != nil {
			return nil, err
		}
		logger.Debugw("refreshing oauth2 token", "url", req.URL)
		cred, ex, err := m.endpoint.do(ctx, req)
		fr := &flightResult{}
		if ex != nil {
			fr.exchanges = append(fr.exchanges, *ex)
		}
		if err != nil {
			return fr, err
		}
		cred.Stamp(m.now())
		m.persist(ctx, key, cred)
		fr.cred = cred
		return fr, nil
	})
	m.metrics.refreshed(cfg.GrantType, err)
	if fr != nil {
		res.Exchanges = append(res.Exchanges, fr.exchanges...)
	}
	if err != nil {
		return nil, err
	}
	return fr.cred, nil
}

func (m *Manager) fetch(
	ctx context.Context, cfg Config, key credentials.Key, strategy grantStrategy, res *TokenResult,
) (*credentials.Credential, error) {
	fr, err := m.once("fetch|"+key.String(), func() (*flightResult, error) {
		logger.Debugw("fetching oauth2 token", "grant_type", cfg.GrantType, "url", key.URL)
		cred, exchanges, err := m.runGrant(ctx, cfg, strategy)
		fr := &flightResult{exchanges: exchanges}
		if err != nil {
			return fr, err
		}
		cred.Stamp(m.now())
		m.persist(ctx, key, cred)
		fr.cred = cred
		return fr, nil
	})
	if fr != nil {
		res.Exchanges = append(res.Exchanges, fr.exchanges...)
	}
	if err != nil {
		return nil, err
	}
	return fr.cred, nil
}

// runGrant performs the grant's authorization step, if any, and its token request.
func (m *Manager) runGrant(ctx context.Context, cfg Config, strategy grantStrategy) (*credentials.Credential, []Exchange, error) {
	var code, verifier string

	if strategy.interactive {
		if m.authorizer == nil {
			return nil, nil, errInteractiveGrant(cfg.GrantType)
		}
		if cfg.GrantType == GrantAuthorizationCode && cfg.PKCE {
			verifier = m.newVerifier()
		}
		areq, err := BuildAuthorizationRequest(cfg, verifier)
		if err != nil {
			return nil, nil, err
		}
		result, err := m.authorizer.Authorize(ctx, areq)
		if err != nil {
			return nil, nil, authorizationFailure(err)
		}
		if result == nil {
			return nil, nil, autherrors.NewAuthorizationError("authorizer returned no result", nil)
		}

		if strategy.tokenRequest == nil {
			if result.Implicit == nil || result.Implicit.AccessToken == "" {
				return nil, nil, autherrors.NewOAuthTokenError("no access token received from authorization server", nil)
			}
			return implicitCredential(result.Implicit), nil, nil
		}
		if result.Code == "" {
			return nil, nil, autherrors.NewAuthorizationError("no authorization code received", nil)
		}
		code = result.Code
	}

	req := strategy.tokenRequest(cfg, code, verifier)
	if err := ApplyAdditionalParameters(req, cfg.AdditionalParameters.Token); err != nil {
		return nil, nil, err
	}
	cred, ex, err := m.endpoint.do(ctx, req)
	var exchanges []Exchange
	if ex != nil {
		exchanges = append(exchanges, *ex)
	}
	return cred, exchanges, err
}

func authorizationFailure(err error) error {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return autherrors.NewAuthorizationError(fmt.Sprintf("authorization server returned %q", authErr.Code), err)
	}
	if autherrors.IsType(err, autherrors.ErrAuthorization) || autherrors.IsConfigurationError(err) {
		return err
	}
	return autherrors.NewAuthorizationError("interactive authorization failed", err)
}
