// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/logger"
)

const (
	// defaultHTTPTimeout is the timeout for token endpoint requests
	defaultHTTPTimeout = 30 * time.Second

	// maxResponseBodySize is the maximum size for reading response bodies (1 MB)
	maxResponseBodySize = 1 << 20

	// redactedPlaceholder is used to redact sensitive values in string representations
	redactedPlaceholder = "[REDACTED]"

	// emptyPlaceholder is used to indicate empty/missing values in string representations
	emptyPlaceholder = "<empty>"
)

// defaultHTTPClient is the default HTTP client used for token requests.
var defaultHTTPClient = &http.Client{
	Timeout: defaultHTTPTimeout,
}

// knownTokenFields are the response fields mapped onto Credential; the
// rest land in Credential.Extra.
var knownTokenFields = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token_type":    true,
	"scope":         true,
	"id_token":      true,
	"expires_in":    true,
}

// EndpointError describes a failed token endpoint exchange. Body holds the
// raw server payload.
type EndpointError struct {
	StatusCode  int
	Code        string
	Description string
	URI         string
	Body        []byte
}

func (e *EndpointError) Error() string {
	switch {
	case e.Code != "" && e.URI != "":
		return fmt.Sprintf("OAuth error %q (status %d): see %s", e.Code, e.StatusCode, e.URI)
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("OAuth error %q (status %d): %s", e.Code, e.StatusCode, e.Description)
	case e.Code != "":
		return fmt.Sprintf("OAuth error %q (status %d)", e.Code, e.StatusCode)
	default:
		return fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
	}
}

// Exchange records one token endpoint round trip for diagnostics.
// Secrets in the request are redacted.
type Exchange struct {
	Method         string
	URL            string
	RequestHeader  http.Header
	RequestForm    url.Values
	StatusCode     int
	ResponseHeader http.Header
	ResponseBody   []byte
	Duration       time.Duration
	// Err is the transport error, if the request never got a response.
	Err string
}

// String implements fmt.Stringer. The response body is omitted.
func (e Exchange) String() string {
	return fmt.Sprintf("Exchange{%s %s, Status: %d, Duration: %s, Form: %v}",
		e.Method, e.URL, e.StatusCode, e.Duration, e.RequestForm)
}

// tokenEndpoint sends token requests and parses their responses.
type tokenEndpoint struct {
	client *http.Client
	now    func() time.Time
}

// do sends req, returning the parsed credential. The exchange record is
// returned on every path where a request was attempted.
func (t *tokenEndpoint) do(ctx context.Context, req *TokenRequest) (*credentials.Credential, *Exchange, error) {
	ex := &Exchange{
		Method:        req.Method,
		URL:           req.URL,
		RequestHeader: redactHeader(req.Header),
		RequestForm:   redactForm(req.Form),
	}

	httpReq, err := req.Encode(ctx)
	if err != nil {
		return nil, nil, autherrors.NewConfigurationError("invalid token request", err)
	}

	logger.Debugw("sending token request", "url", req.URL, "grant_type", req.Form.Get("grant_type"))
	started := t.now()
	resp, err := t.client.Do(httpReq)
	ex.Duration = t.now().Sub(started)
	if err != nil {
		ex.Err = err.Error()
		return nil, ex, autherrors.NewTokenEndpointError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	ex.StatusCode = resp.StatusCode
	ex.ResponseHeader = resp.Header.Clone()
	ex.ResponseBody = body
	if err != nil {
		return nil, ex, autherrors.NewTokenEndpointError("failed to read token response", err)
	}

	fields := parseResponseFields(resp.Header.Get("Content-Type"), body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		epErr := endpointError(resp.StatusCode, fields, body)
		logger.Debugf("Token endpoint failed with status %d: %s", resp.StatusCode, epErr.Code)
		return nil, ex, autherrors.NewTokenEndpointError(
			fmt.Sprintf("token endpoint %s rejected the request", req.URL), epErr)
	}

	if code := fields.get("error"); code != "" {
		epErr := endpointError(resp.StatusCode, fields, body)
		logger.Debugf("Token endpoint OAuth error: %s (description: %s)", epErr.Code, epErr.Description)
		return nil, ex, autherrors.NewOAuthTokenError("token response carries an error", epErr)
	}

	cred := fields.credential()
	if cred.AccessToken == "" {
		return nil, ex, autherrors.NewOAuthTokenError(
			"token response has no access_token", &EndpointError{StatusCode: resp.StatusCode, Body: body})
	}
	return cred, ex, nil
}

func endpointError(status int, fields responseFields, body []byte) *EndpointError {
	return &EndpointError{
		StatusCode:  status,
		Code:        fields.get("error"),
		Description: fields.get("error_description"),
		URI:         fields.get("error_uri"),
		Body:        body,
	}
}

// responseFields is a parsed token response: JSON, or form-encoded for
// providers that ignore Accept.
type responseFields struct {
	json gjson.Result
	form url.Values
}

func parseResponseFields(contentType string, body []byte) responseFields {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain" {
		if form, err := url.ParseQuery(string(body)); err == nil && !gjson.ValidBytes(body) {
			return responseFields{form: form}
		}
	}
	if !gjson.ValidBytes(body) {
		return responseFields{}
	}
	return responseFields{json: gjson.ParseBytes(body)}
}

func (f responseFields) get(name string) string {
	if f.form != nil {
		return f.form.Get(name)
	}
	v := f.json.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

// expiresIn accepts numbers and numeric strings.
func (f responseFields) expiresIn() int64 {
	if f.form != nil {
		n, _ := strconv.ParseInt(f.form.Get("expires_in"), 10, 64)
		return n
	}
	v := f.json.Get("expires_in")
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.String:
		n, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0
		}
		return int64(n)
	default:
		return 0
	}
}

func (f responseFields) credential() *credentials.Credential {
	cred := &credentials.Credential{
		AccessToken:  f.get("access_token"),
		RefreshToken: f.get("refresh_token"),
		TokenType:    f.get("token_type"),
		Scope:        f.get("scope"),
		IDToken:      f.get("id_token"),
		ExpiresIn:    f.expiresIn(),
	}

	extra := map[string]any{}
	if f.form != nil {
		for k := range f.form {
			if !knownTokenFields[k] {
				extra[k] = f.form.Get(k)
			}
		}
	} else if f.json.IsObject() {
		f.json.ForEach(func(key, value gjson.Result) bool {
			if !knownTokenFields[key.String()] {
				extra[key.String()] = value.Value()
			}
			return true
		})
	}
	if len(extra) > 0 {
		cred.Extra = extra
	}
	return cred
}
