// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth2

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/stacklok/reqauth/pkg/networking"
)

// ApplyToken places token on an outgoing request according to cfg:
// an Authorization header with the configured prefix, or a query parameter.
// An empty token leaves the request untouched.
func ApplyToken(header http.Header, u *url.URL, cfg Config, token string) {
	if token == "" {
		return
	}
	cfg = cfg.WithDefaults()

	switch cfg.TokenPlacement {
	case TokenInURL:
		if u == nil {
			return
		}
		networking.SetQueryParam(u, cfg.TokenQueryKey, token)
	default:
		prefix := strings.TrimSpace(cfg.HeaderPrefix())
		if prefix == "" {
			header.Set("Authorization", token)
			return
		}
		header.Set("Authorization", prefix+" "+token)
	}
}
